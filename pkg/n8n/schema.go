package n8n

import (
	"strings"

	"github.com/flowgate/flowgate/pkg/models"
)

// ExtractInputSchema derives the input schema of a workflow from its trigger
// node. The first node whose type names "trigger", "webhook" or "manual" wins;
// when none matches, the first node is used. A node without a declared schema
// yields the default empty object schema.
func ExtractInputSchema(definition *models.WorkflowDefinition) map[string]any {
	var triggerNode *models.WorkflowNode

	for i := range definition.Nodes {
		nodeType := strings.ToLower(definition.Nodes[i].Type)
		if strings.Contains(nodeType, "trigger") ||
			strings.Contains(nodeType, "webhook") ||
			strings.Contains(nodeType, "manual") {
			triggerNode = &definition.Nodes[i]

			break
		}
	}

	if triggerNode == nil && len(definition.Nodes) > 0 {
		triggerNode = &definition.Nodes[0]
	}

	if triggerNode != nil {
		if schema, ok := triggerNode.Parameters["schema"].(map[string]any); ok && schema != nil {
			return schema
		}
	}

	return models.DefaultSchema()
}

// ExtractOutputSchema derives the output schema from the last node in the
// workflow, reading output_schema and falling back to schema.
func ExtractOutputSchema(definition *models.WorkflowDefinition) map[string]any {
	if len(definition.Nodes) == 0 {
		return models.DefaultSchema()
	}

	lastNode := definition.Nodes[len(definition.Nodes)-1]

	if schema, ok := lastNode.Parameters["output_schema"].(map[string]any); ok && schema != nil {
		return schema
	}

	if schema, ok := lastNode.Parameters["schema"].(map[string]any); ok && schema != nil {
		return schema
	}

	return models.DefaultSchema()
}

// DetectTriggerType classifies the workflow's trigger by substring match on
// the lowercased node type, in node order: webhook, then manual/execute, then
// trigger. When nothing matches, the first node is returned as unknown.
func DetectTriggerType(definition *models.WorkflowDefinition) (models.TriggerType, models.WorkflowNode) {
	for _, node := range definition.Nodes {
		nodeType := strings.ToLower(node.Type)

		switch {
		case strings.Contains(nodeType, "webhook"):
			return models.TriggerTypeWebhook, node
		case strings.Contains(nodeType, "manual"), strings.Contains(nodeType, "execute"):
			return models.TriggerTypeManual, node
		case strings.Contains(nodeType, "trigger"):
			return models.TriggerTypeTrigger, node
		}
	}

	if len(definition.Nodes) > 0 {
		return models.TriggerTypeUnknown, definition.Nodes[0]
	}

	return models.TriggerTypeUnknown, models.WorkflowNode{}
}

// WebhookTrigger locates the first webhook node and returns its configured
// path and HTTP method. The method defaults to POST.
func WebhookTrigger(definition *models.WorkflowDefinition) (path, method string, err error) {
	var webhookNode *models.WorkflowNode

	for i := range definition.Nodes {
		if strings.Contains(strings.ToLower(definition.Nodes[i].Type), "webhook") {
			webhookNode = &definition.Nodes[i]

			break
		}
	}

	if webhookNode == nil {
		return "", "", ErrNoWebhookNode
	}

	path, _ = webhookNode.Parameters["path"].(string)
	if path == "" {
		return "", "", ErrMissingWebhookPath
	}

	method, _ = webhookNode.Parameters["httpMethod"].(string)
	if method == "" {
		method = "POST"
	}

	return path, method, nil
}
