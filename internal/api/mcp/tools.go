package mcp

// buildToolsList returns the canonical list of MCP tool definitions.
func buildToolsList() []MCPTool {
	snapshotSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Snapshot name. Omit to use the configured default snapshot."},
		},
	}

	return []MCPTool{
		{
			Name: "process_findings",
			Description: "Ingest username-probe findings and correlate them with the session. " +
				"Pass either findings (a list of {username, platform_name, profile_url, status, metadata} objects) " +
				"or document (raw JSON, JSON Lines or YAML text with format). Returns session totals after correlation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"findings": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}, "description": "Findings to ingest"},
					"document": map[string]interface{}{"type": "string", "description": "Raw findings document; alternative to findings"},
					"format":   map[string]interface{}{"type": "string", "enum": []string{"json", "jsonl", "yaml"}, "description": "Format of document (default json)"},
				},
			},
		},
		{
			Name:        "get_result",
			Description: "Return the full correlation result: entities, relationships, clusters, average confidence and summary.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        "list_entities",
			Description: "List entities in the session, optionally filtered by kind (account, email, person, ...).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind":  map[string]interface{}{"type": "string", "description": "Entity kind filter"},
					"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 50, max 500)"},
				},
			},
		},
		{
			Name:        "get_entity",
			Description: "Fetch one entity by ID together with every relationship that involves it.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]interface{}{
					"id": map[string]interface{}{"type": "string", "description": "Entity ID, e.g. ent:account:github:johndoe (required)"},
				},
			},
		},
		{
			Name:        "list_relationships",
			Description: "List relationships, filtered by involved entity, kind (same_person, potential, related, suspicious) and minimum confidence.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"entity_id":      map[string]interface{}{"type": "string", "description": "Only relationships involving this entity"},
					"kind":           map[string]interface{}{"type": "string", "description": "Relationship kind"},
					"min_confidence": map[string]interface{}{"type": "number", "description": "Minimum confidence, 0-100"},
				},
			},
		},
		{
			Name:        "find_path",
			Description: "Find the shortest relationship path between two entities.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"from", "to"},
				"properties": map[string]interface{}{
					"from": map[string]interface{}{"type": "string", "description": "Start entity ID (required)"},
					"to":   map[string]interface{}{"type": "string", "description": "Target entity ID (required)"},
				},
			},
		},
		{
			Name:        "central_entities",
			Description: "Rank entities by degree centrality.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"top": map[string]interface{}{"type": "integer", "description": "Number of entities to return (default 10)"},
				},
			},
		},
		{
			Name:        "graph_stats",
			Description: "Return graph statistics: nodes, edges, components, average degree, density and confidence range.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        "save_snapshot",
			Description: "Persist the session to the snapshot store.",
			InputSchema: snapshotSchema,
		},
		{
			Name:        "load_snapshot",
			Description: "Replace the session with a stored snapshot.",
			InputSchema: snapshotSchema,
		},
		{
			Name:        "list_snapshots",
			Description: "List stored snapshots, newest first.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        "reset_session",
			Description: "Discard every entity, relationship and cluster in the session. Stored snapshots are kept.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
	}
}
