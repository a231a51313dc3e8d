package policy

import (
	_ "embed"
	"encoding/json"
)

//go:embed prompts/interview.txt
var InterviewPrompt string

//go:embed prompts/evaluation.txt
var EvaluationPrompt string

// TurnSchema is the JSON schema of a dialogue turn result.
var TurnSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_response": {"type": "string"},
    "turn_outcome": {
      "type": "string",
      "enum": ["NORMAL", "WRAP_UP", "GATEKEEPER_FAILURE_ALREADY_INTERVIEWED", "GATEKEEPER_FAILURE_INOFFICE_NOTPOSSIBLE", "CANDIDATE_REQUESTING_END_CALL"]
    },
    "turn_outcome_reasoning": {"type": "string"}
  },
  "required": ["agent_response", "turn_outcome", "turn_outcome_reasoning"],
  "additionalProperties": false
}`)

// EvaluationSchema is the JSON schema of an evaluation result.
var EvaluationSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "scorecard": {
      "type": "object",
      "properties": {
        "system_design": {"type": "integer"},
        "hands_on_coding": {"type": "integer"},
        "communication": {"type": "integer"},
        "confidence": {"type": "integer"},
        "ownership": {"type": "integer"},
        "problem_solving": {"type": "integer"}
      },
      "required": ["system_design", "hands_on_coding", "communication", "confidence", "ownership", "problem_solving"],
      "additionalProperties": false
    },
    "summary": {"type": "string"},
    "recommendation": {"type": "string", "enum": ["Recommend", "Not Recommend"]}
  },
  "required": ["scorecard", "summary", "recommendation"],
  "additionalProperties": false
}`)
