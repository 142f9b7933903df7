package session

import "fmt"

// Character budgets for the system instruction. The service rejects
// oversized setup frames, so the free-text context is bounded here.
const (
	resumeBudget  = 20000
	jobDescBudget = 10000
)

// AnswerLength parameterizes how verbose the model's spoken answers are.
type AnswerLength string

const (
	AnswerShort  AnswerLength = "short"
	AnswerMedium AnswerLength = "medium"
	AnswerLong   AnswerLength = "long"
)

// InterviewContext is the conversation background the system instruction is
// assembled from.
type InterviewContext struct {
	JobTitle       string
	Company        string
	Resume         string
	JobDescription string
}

func lengthDirective(length AnswerLength) string {
	switch length {
	case AnswerShort:
		return "Keep answers very short, 1-2 sentences max."
	case AnswerLong:
		return "Provide detailed, comprehensive answers with examples."
	default:
		return "Provide balanced, 2-3 sentence answers."
	}
}

func truncate(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	return s[:budget]
}

// BuildSystemInstruction assembles the connect-time instruction from the
// candidate background, the target role, and the answer-length directive.
func BuildSystemInstruction(ictx InterviewContext, length AnswerLength) string {
	return fmt.Sprintf(`You are an expert interview coach acting as the candidate.
Your GOAL is to help the user pass the interview by answering questions in real-time.

CONTEXT:
Candidate Resume Summary: %s
Target Role: %s at %s
Job Description Summary: %s

INSTRUCTIONS:
1. Listen carefully to the interviewer (via system audio).
2. When a question is asked, answer it immediately and confidently in the first person ("I...").
3. Use the resume context to provide factual answers.
4. %s
5. Do not be verbose. Get straight to the point.
`,
		truncate(ictx.Resume, resumeBudget),
		ictx.JobTitle, ictx.Company,
		truncate(ictx.JobDescription, jobDescBudget),
		lengthDirective(length))
}

// UpdateDirective is the out-of-band instruction sent when the answer
// length changes mid-session.
func UpdateDirective(length AnswerLength) string {
	return fmt.Sprintf("Instructions Update: Please provide %s answers from now on.", length)
}
