package registry

// DefaultPieces returns the pieces shipped with stepflow.
func DefaultPieces() []Piece {
	return []Piece{webhookPiece(), schedulePiece(), kafkaPiece(), httpPiece()}
}

// RegisterDefaultPieces registers every piece of DefaultPieces.
func (r *Registry) RegisterDefaultPieces() error {
	for _, p := range DefaultPieces() {
		if err := r.RegisterPiece(p); err != nil {
			return err
		}
	}

	return nil
}

func webhookPiece() Piece {
	return Piece{
		Name:        "webhook",
		DisplayName: "Webhook",
		Triggers: map[string]map[string]any{
			"catch_webhook": {
				"type": "object",
				"properties": map[string]any{
					"method": map[string]any{
						"type":        "string",
						"description": "HTTP method allowed for the webhook",
						"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
					},
					"headers": map[string]any{
						"type":        "object",
						"description": "Expected HTTP headers",
					},
				},
			},
		},
	}
}

func schedulePiece() Piece {
	return Piece{
		Name:        "schedule",
		DisplayName: "Schedule",
		Triggers: map[string]map[string]any{
			"cron_expression": {
				"type": "object",
				"properties": map[string]any{
					"cron_expression": map[string]any{
						"type":        "string",
						"format":      CronFormat,
						"description": "Five-field cron expression",
						"examples":    []string{"0 9 * * MON-FRI", "*/15 * * * *"},
					},
					"timezone": map[string]any{
						"type":    "string",
						"default": "UTC",
					},
				},
				"required": []string{"cron_expression"},
			},
		},
	}
}

func kafkaPiece() Piece {
	return Piece{
		Name:        "kafka",
		DisplayName: "Kafka",
		Triggers: map[string]map[string]any{
			"new_message": {
				"type": "object",
				"properties": map[string]any{
					"topic":          map[string]any{"type": "string", "minLength": 1},
					"consumer_group": map[string]any{"type": "string"},
					"brokers": map[string]any{
						"type":     "array",
						"items":    map[string]any{"type": "string"},
						"minItems": 1,
					},
				},
				"required": []string{"topic"},
			},
		},
	}
}

func httpPiece() Piece {
	return Piece{
		Name:        "http",
		DisplayName: "HTTP",
		Actions: map[string]map[string]any{
			"send_request": {
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "minLength": 1},
					"method": map[string]any{
						"type": "string",
						"enum": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
					},
					"headers": map[string]any{"type": "object"},
					"body":    map[string]any{"type": "string"},
					"timeout": map[string]any{"type": "number", "minimum": 1, "maximum": 300},
				},
				"required": []string{"url", "method"},
			},
		},
	}
}
