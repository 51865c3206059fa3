package content

import (
	"encoding/json"
	"strings"
)

// Shape classifies the layout of a generated-content payload. Generation
// output has no schema contract; the shape is inferred from key presence
// and decided exactly once, here.
type Shape string

const (
	ShapePassageGroups  Shape = "passage_groups"
	ShapeListeningParts Shape = "listening_parts"
	ShapeWritingTasks   Shape = "writing_task_groups"
	ShapeSpeakingParts  Shape = "speaking_part_groups"
	ShapeLegacyFlat     Shape = "legacy_flat"
	ShapeUnrecognized   Shape = "unrecognized"
)

// Skill names as used across the service.
const (
	SkillReading   = "reading"
	SkillWriting   = "writing"
	SkillListening = "listening"
	SkillSpeaking  = "speaking"
)

// DetectShape classifies a parsed payload. Checks run most-specific first:
// a listening payload may also carry passage-shaped fields from reused
// generation paths, so listening_parts must win over passage_groups.
func DetectShape(raw []byte, skill string) Shape {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "[") {
		return ShapeLegacyFlat
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return ShapeUnrecognized
	}
	_, hasParts := keys["parts"]
	_, hasTestTitle := keys["test_title"]
	_, hasPassage := keys["passage"]
	_, hasGroups := keys["question_groups"]
	_, hasQuestions := keys["questions"]

	switch {
	case hasParts && hasTestTitle:
		return ShapeListeningParts
	case hasPassage && hasGroups:
		return ShapePassageGroups
	case hasGroups && strings.EqualFold(skill, SkillWriting):
		return ShapeWritingTasks
	case hasGroups && strings.EqualFold(skill, SkillSpeaking):
		return ShapeSpeakingParts
	case hasPassage && hasQuestions:
		return ShapePassageGroups
	default:
		return ShapeUnrecognized
	}
}
