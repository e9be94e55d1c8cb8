package server

// updateProgressSchema validates POST /api/update-progress bodies. Material
// entries accept the current {reachable, completed} object and the legacy
// boolean. A missing status reads as not started.
const updateProgressSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["internID", "progress"],
  "properties": {
    "internID": {"type": "string", "minLength": 1},
    "progress": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/course"}
    }
  },
  "definitions": {
    "course": {
      "type": "object",
      "properties": {
        "status": {"type": "boolean"},
        "topics": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/topic"}
        }
      }
    },
    "topic": {
      "type": "object",
      "properties": {
        "status": {"type": "boolean"},
        "subTopics": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/subTopic"}
        }
      }
    },
    "subTopic": {
      "type": "object",
      "properties": {
        "status": {"type": "boolean"},
        "materials": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/material"}
        }
      }
    },
    "material": {
      "oneOf": [
        {"type": "boolean"},
        {
          "type": "object",
          "properties": {
            "reachable": {"type": "boolean"},
            "completed": {"type": "boolean"}
          },
          "additionalProperties": false
        }
      ]
    }
  }
}`
