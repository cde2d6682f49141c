package schema

import "encoding/json"

// RuleDocumentSchema is the structural pre-validation gate for rule
// documents, mirroring the field shapes pkg/automation.Compile expects.
// It is deliberately permissive about numeric/boolean spelling (oneOf
// string/number, oneOf string/boolean) since the compiler itself does
// the duck-typed coercion; this schema only pins down which fields must
// be present and what shape they can take.
var RuleDocumentSchema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "name", "triggers", "actions"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"enabled": {"oneOf": [{"type": "boolean"}, {"type": "string"}, {"type": "number"}]},
		"mode": {"type": "string"},
		"triggers": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["type", "event_type"],
				"properties": {
					"type": {"const": "event"},
					"event_type": {
						"type": "string",
						"enum": ["zigbee.command", "zigbee.attr_report", "device.join", "device.leave"]
					},
					"match": {
						"type": "object",
						"properties": {
							"device_uid": {"type": "string"},
							"payload.endpoint": {"oneOf": [{"type": "string"}, {"type": "number"}]},
							"payload.cmd": {"type": "string"},
							"payload.cluster": {"oneOf": [{"type": "string"}, {"type": "number"}]},
							"payload.attr": {"oneOf": [{"type": "string"}, {"type": "number"}]}
						}
					}
				}
			}
		},
		"conditions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type", "op", "ref", "value"],
				"properties": {
					"type": {"const": "state"},
					"op": {"type": "string", "enum": ["==", "!=", ">", "<", ">=", "<="]},
					"ref": {
						"type": "object",
						"required": ["device_uid", "key"],
						"properties": {
							"device_uid": {"type": "string"},
							"key": {"type": "string"}
						}
					},
					"value": {"oneOf": [{"type": "boolean"}, {"type": "number"}, {"type": "string"}]}
				}
			}
		},
		"actions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["type", "cmd"],
				"properties": {
					"type": {"const": "zigbee"},
					"cmd": {"type": "string", "minLength": 1},
					"device_uid": {"type": "string"},
					"endpoint": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"group_id": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"scene_id": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"src_device_uid": {"type": "string"},
					"dst_device_uid": {"type": "string"},
					"src_endpoint": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"dst_endpoint": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"cluster_id": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"level": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"x": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"y": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"mireds": {"oneOf": [{"type": "string"}, {"type": "number"}]},
					"transition_ms": {"oneOf": [{"type": "string"}, {"type": "number"}]}
				}
			}
		}
	}
}`)
