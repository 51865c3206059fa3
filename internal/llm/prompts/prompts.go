// Package prompts builds the chat prompts for question generation and
// band grading. The wording here is advisory: nothing downstream depends
// on it, the normalizer detects whatever shape comes back.
package prompts

import (
	"fmt"
	"strings"
)

// GenerationSystem is the system role for question generation.
const GenerationSystem = "You are an expert English teacher and exam creator specializing in high-quality exam questions for IELTS, TOEIC, and other English proficiency tests."

// Generation builds the user prompt for generating a skill's questions.
func Generation(examFamily, skill, topic, difficulty string, numQuestions int, questionTypes []string) string {
	var sb strings.Builder
	family := strings.ToUpper(examFamily)
	switch strings.ToLower(skill) {
	case "listening":
		fmt.Fprintf(&sb, "Create a %s Listening test with %d questions about %q, difficulty %s.\n", family, numQuestions, topic, difficulty)
		sb.WriteString("Structure: 4 parts (social conversation, social monologue, academic discussion, academic lecture), questions split evenly.\n")
		sb.WriteString("Each part needs a realistic audio_script (300-500 words) and question_groups with group_instruction, section_title and questions.\n")
		sb.WriteString(`Return ONLY JSON: {"test_title": "...", "parts": [{"part_number": 1, "title": "PART 1", "subtitle": "...", "context": "...", "audio_script": "...", "question_groups": [{"section_title": "...", "group_instruction": "...", "questions": [` + questionSchema + `]}]}]}`)
	case "writing":
		fmt.Fprintf(&sb, "Create a %s Writing test about %q, difficulty %s: Task 1 (chart/letter, 20 minutes, 150 words) and Task 2 (essay, 40 minutes, 250 words).\n", family, topic, difficulty)
		sb.WriteString(`Return ONLY JSON: {"question_groups": [{"group_name": "WRITING TASK 1", "question_type": "essay", "instruction": "...", "questions": [{"question_number": 1, "question_type": "essay", "content": "...", "explanation": "sample answer outline", "points": 0}]}, {"group_name": "WRITING TASK 2", ...}]}`)
	case "speaking":
		fmt.Fprintf(&sb, "Create a %s Speaking test about %q, difficulty %s with three parts: interview questions, a cue card, and discussion questions.\n", family, topic, difficulty)
		sb.WriteString(`Return ONLY JSON: {"question_groups": [{"group_name": "PART 1", "question_type": "spoken_question", "instruction": "...", "questions": [{"question_number": 1, "question_type": "spoken_question", "content": "...", "points": 0}]}, {"group_name": "PART 2", "question_type": "cue_card", ...}, {"group_name": "PART 3", ...}]}`)
	default: // reading
		fmt.Fprintf(&sb, "Create a %s Academic Reading test: one passage (700-900 words) about %q with EXACTLY %d questions, difficulty %s.\n", family, topic, numQuestions, difficulty)
		if len(questionTypes) > 0 {
			fmt.Fprintf(&sb, "Required question types: %s.\n", strings.Join(questionTypes, ", "))
		} else {
			sb.WriteString("Use common question types: multiple_choice, true_false_not_given, yes_no_not_given, short_text.\n")
		}
		sb.WriteString("Group questions by type. Number them sequentially from 1 with no gaps. ")
		sb.WriteString("For multiple_choice, exactly ONE answer object must have is_correct true.\n")
		sb.WriteString(`Return ONLY JSON: {"passage": {"title": "...", "introduction": "...", "content": "...", "word_count": 850}, "question_groups": [{"group_name": "Questions 1-5", "question_type": "...", "instruction": "...", "questions": [` + questionSchema + `]}]}`)
	}
	return sb.String()
}

const questionSchema = `{"question_number": 1, "question_type": "...", "content": "...", "answers": [{"answer_content": "...", "is_correct": false, "feedback": "..."}], "correct_answer": "...", "explanation": "...", "points": 1}`

// GradingSystem is the system role for band grading.
func GradingSystem(examFamily, mode string) string {
	return fmt.Sprintf("You are an experienced %s examiner specializing in grading %s tasks. Provide detailed, constructive feedback.",
		strings.ToUpper(examFamily), mode)
}

// WritingGrading builds the band-grading prompt for a writing answer.
func WritingGrading(examFamily, question, answer, rubricHint string) string {
	return gradingPrompt(examFamily, "Writing", question, "Student's Answer", answer, rubricHint,
		"task_achievement", "coherence_cohesion", "lexical_resource", "grammatical_accuracy")
}

// SpeakingGrading builds the band-grading prompt for a speaking
// transcript.
func SpeakingGrading(examFamily, question, transcript, rubricHint string) string {
	return gradingPrompt(examFamily, "Speaking", question, "Student's Response (Transcript)", transcript, rubricHint,
		"fluency_coherence", "lexical_resource", "grammatical_accuracy", "pronunciation")
}

func gradingPrompt(examFamily, mode, question, answerLabel, answer, rubricHint string, criteria ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grade the following %s %s task on the 0-9 band scale.\n\n", strings.ToUpper(examFamily), mode)
	fmt.Fprintf(&sb, "Question/Task:\n%s\n\n%s:\n%s\n\n", question, answerLabel, answer)
	if rubricHint != "" {
		fmt.Fprintf(&sb, "Additional grading criteria:\n%s\n\n", rubricHint)
	}
	fmt.Fprintf(&sb, "Score each criterion (%s) and the overall band.\n", strings.Join(criteria, ", "))
	sb.WriteString("Respond ONLY with JSON:\n")
	sb.WriteString(`{"overall_score": 7.0, "criteria_scores": {`)
	for i, c := range criteria {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: 7.0", c)
	}
	sb.WriteString(`}, "criteria_feedback": {"<criterion>": "..."}, "strengths": ["..."], "weaknesses": ["..."], "detailed_feedback": "...", "suggestions": ["..."]}`)
	return sb.String()
}
