package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaizenhr/appraise/backend/models"
)

// Prompt builders for the appraisal interview. The generation backend is
// asked for strict JSON wherever the reply is consumed as structured data;
// every parse has a fallback path because the model is never trusted to
// comply.

const interviewerRole = "You are an expert assistant conducting employee self-reviews. Your goal is to gather comprehensive information about an employee's performance across different competency areas."

// canned closing shown once the completion heuristic fires
const closingMessage = "Thank you for sharing your experiences! I have enough information to complete your self-appraisal. Would you like to review your responses and submit your appraisal?"

// fallbackOpening is used when question planning fails; the interview must
// never block on the planner.
const fallbackOpening = "Let's start with a conversation about your work experience. What would you like to tell me about your recent contributions and achievements?"

// buildQuestionPlanPrompt asks for one question per competency area, as a
// strict JSON object with a questions array.
func buildQuestionPlanPrompt() string {
	var b strings.Builder
	b.WriteString(interviewerRole)
	b.WriteString("\nLook at the competency matrix and generate questions for the employee to answer. The number of questions should be equal to the number of competency areas.\n\n")

	b.WriteString("Competency matrix:\n")
	for _, area := range CompetencyCatalog {
		fmt.Fprintf(&b, "%s (%s):\n", area.Name, area.Definition)
		for level, behaviors := range area.Rubric {
			fmt.Fprintf(&b, "  %s: %s\n", level, strings.Join(behaviors, " "))
		}
	}

	b.WriteString(`
Generated questions should be in the following format:
{
  "questions": [
    {
      "question": "Question text"
    }
  ]
}

Competency areas are:
`)
	for i, name := range AreaNames() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}

	b.WriteString(`
GUIDELINES FOR CREATING QUESTIONS:
1. Start broad, then dive deep: begin with open-ended questions that allow employees to share their experiences, then follow up with specific probing questions.
2. Use behavioral questions: ask for specific examples, situations, and outcomes rather than general opinions.
3. Focus on recent performance: ask about the last few months of work.
4. Encourage self-reflection: questions should prompt employees to think critically about their performance.
5. Be professional but conversational.
6. Ask for quantifiable examples: metrics, timelines, or specific achievements.
7. Cover both strengths and areas for improvement.

Generate questions that will help gather comprehensive information about the employee's performance while maintaining a professional and supportive conversation flow.
Ask only one question at a time.
Don't add any preamble or postamble to your response.`)

	return b.String()
}

// buildInterviewConductPrompt is the system instruction for every interview
// turn: the full question plan plus the rule for ending the conversation.
func buildInterviewConductPrompt(questions []models.PlannedQuestion) string {
	plan, _ := json.Marshal(map[string][]models.PlannedQuestion{"questions": questions})

	var b strings.Builder
	b.WriteString(interviewerRole)
	b.WriteString("\nHere are the questions for the employee to answer:\n")
	b.Write(plan)
	b.WriteString(`
If the employee already answered a question which contains the answer of all other questions, do not continue: just say thank you and end the conversation.
Otherwise please ask the next questions one by one.
In the given format:
{"question": "Question text"}
Please ask the questions one by one.`)

	return b.String()
}

// buildCoveragePrompt classifies one utterance against the catalog. No
// conversation history: coverage is per-utterance.
func buildCoveragePrompt(utterance string) string {
	var b strings.Builder
	b.WriteString("Analyze the following content and identify which competency areas are covered. Return your response in JSON format.\n\nCompetency Areas to evaluate:\n")
	for i, area := range CompetencyCatalog {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, area.Name, area.Definition)
	}

	b.WriteString(`
Respond with JSON in this exact format:
{
  "covered_areas": [
    {
      "area": "Technical Skills",
      "explanation": "Brief explanation of what technical aspects were mentioned"
    }
  ],
  "total_areas_covered": 1,
  "summary": "Brief overall summary of the content coverage"
}

If no specific areas are clearly covered, return:
{
  "covered_areas": [],
  "total_areas_covered": 0,
  "summary": "No specific competency areas clearly identified"
}

Don't add any preamble or postamble to your response.
Content to analyze:
`)
	b.WriteString(utterance)

	return b.String()
}

// buildTranscriptAnalysisPrompt summarizes the employee's side of the
// finished conversation into a structured assessment.
func buildTranscriptAnalysisPrompt(userResponses string) string {
	return fmt.Sprintf(`Analyze the following employee self-appraisal responses and provide a comprehensive analysis:

%s

Please provide:
1. Key strengths identified
2. Areas for improvement
3. Overall assessment
4. Recommendations for development

Keep the analysis professional and constructive.`, userResponses)
}

// buildWelcomeMessage greets the employee and opens with the given question.
func buildWelcomeMessage(firstName, openingQuestion string) string {
	return fmt.Sprintf("Hello %s! Welcome to your self-appraisal. I'm here to help you reflect on your performance across different areas. Let's start with our first question:\n\n%s", firstName, openingQuestion)
}

// buildFallbackWelcome is the generic open-ended opening used when no
// question plan is available.
func buildFallbackWelcome(firstName string) string {
	return fmt.Sprintf("Hello %s! Welcome to your self-appraisal. I'm here to help you reflect on your performance across different areas. %s", firstName, fallbackOpening)
}

// isConversationComplete is the completion heuristic: the assistant signals
// the end of the interview in free text, detected by the conjunction of two
// substrings. Isolated here so a structured done-signal can replace it
// without touching the state machine.
func isConversationComplete(reply string) bool {
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "thank you") && strings.Contains(lower, "end")
}
