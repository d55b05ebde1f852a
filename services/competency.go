package services

// The competency catalog is the static enumeration every other component
// leans on: question generation covers it, coverage analysis classifies
// against it, and interview progress is measured as the share of it touched.

// CompetencyArea is one fixed category of performance being evaluated.
type CompetencyArea struct {
	Key        string              // stable identifier, used as map key
	Name       string              // display name used in prompts and reports
	Definition string              // one-line definition for rubric classification
	Rubric     map[string][]string // performance level -> observed behaviors
}

// Performance levels used by the rubric, worst to best.
const (
	LevelUnderperforming  = "underperforming"
	LevelNeedsImprovement = "needs_improvement"
	LevelMeetsExpectation = "meets_expectation"
	LevelAboveExpectation = "above_expectation"
	LevelExceptional      = "exceptional"
)

// CompetencyCatalog is the fixed list of areas, in presentation order.
var CompetencyCatalog = []CompetencyArea{
	{
		Key:        "technical",
		Name:       "Technical Skills",
		Definition: "coding, testing, technical problem-solving, code quality, technical learning",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Not able to write code as per specifications.", "Repeats the same mistakes even after reviews and feedback."},
			LevelNeedsImprovement: {"Heavy handholding needed technically and functionally to complete the work.", "Unit testing of the assigned task has to be improved."},
			LevelMeetsExpectation: {"Delivers executable code on time but needs to improve on quality, coding standards or timelines."},
			LevelAboveExpectation: {"Delivers executable code in the specified time meeting quality standards and best practices.", "Good unit testing skills.", "Learns and improves on feedback."},
			LevelExceptional:      {"Fast learner, deep understanding of technology, takes code refactoring and tech debts on own initiative.", "Good understanding of the overall architecture and how every piece fits in the system."},
		},
	},
	{
		Key:        "functional",
		Name:       "Functional Understanding",
		Definition: "business logic comprehension, feature understanding, user perspective",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Does not understand or show interest in understanding functionality or use cases."},
			LevelNeedsImprovement: {"Does not try to understand the functionality but completes tasks with incomplete knowledge."},
			LevelMeetsExpectation: {"Understands what the task is trying to achieve and completes it with good feature testing.", "Misses dependent changes affected by the change due to lack of overall knowledge."},
			LevelAboveExpectation: {"Understands the complete features of the components being worked on and how they fit the big picture.", "Understands the connected pieces and the areas affected by a change."},
			LevelExceptional:      {"Backward compatibility and data migration are thought through and handled.", "Complete user empathy with end-to-end understanding of the product.", "Suggests improvements to the overall experience, quality or efficiency of the product."},
		},
	},
	{
		Key:        "ai_adoption",
		Name:       "AI Adoption",
		Definition: "use of AI tools, prompt engineering, AI productivity improvements",
		Rubric: map[string][]string{
			LevelMeetsExpectation: {"Aware of common AI productivity tools and uses at least one of them.", "Uses AI tools for repetitive coding, test case generation and documentation."},
			LevelAboveExpectation: {"Effective in prompt engineering.", "Actively seeks out new AI tools and shares them with peers."},
			LevelExceptional:      {"Excellent in prompt engineering, combines AI tools to increase productivity.", "Uses freed-up time to upskill or make themselves available for the organisation."},
		},
	},
	{
		Key:        "communication",
		Name:       "Communication",
		Definition: "written/verbal communication, team interactions, stakeholder communication",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Does not convey when taking leave or when unavailable; often unavailable on chat platforms and meetings."},
			LevelNeedsImprovement: {"Does not convey when a task is completed or when unable to progress.", "Needs to involve more in discussions and grooming sessions."},
			LevelMeetsExpectation: {"Clarifies doubts, asks questions and completes the tasks.", "Raises concerns as and when required.", "Should improve on listening skills."},
			LevelAboveExpectation: {"Actively participates in discussions.", "Communicates clearly on expectations, what was achieved and how.", "Good written and verbal communication."},
			LevelExceptional:      {"Articulates well with clients and the team.", "Good presentation and demo skills; says no politely when required.", "Communicates with empathy, using data points and proper sequencing."},
		},
	},
	{
		Key:        "energy_drive",
		Name:       "Energy & Drive",
		Definition: "initiative, proactiveness, learning attitude, feedback acceptance",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Not open to feedback.", "No change even after providing feedback."},
			LevelNeedsImprovement: {"Needs to be more proactive.", "Needs to take more initiative to learn and improve oneself."},
			LevelMeetsExpectation: {"Proactive; takes initiative to learn and improve.", "Does whatever is in one's hands for the team to deliver on time."},
			LevelAboveExpectation: {"Goes the extra mile to help the team deliver on time.", "Open to take up any kind of task to make it happen."},
			LevelExceptional:      {"Positively seeks out new challenges and projects.", "Helps in training and mentoring others, takes sessions and workshops.", "Gives feedback to the team as well as to other team members."},
		},
	},
	{
		Key:        "responsibilities_trust",
		Name:       "Responsibilities & Trust",
		Definition: "commitment delivery, accountability, reliability",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Unable to stick by the commitments made for the deliverables assigned.", "Defends and is unable to accept mistakes when pointed out."},
			LevelNeedsImprovement: {"Usually sticks by commitments but misses out on things.", "Needs follow up."},
			LevelMeetsExpectation: {"Does what they say they will do, without any follow ups."},
			LevelAboveExpectation: {"Stands by and delivers to commitments made.", "Admits mistakes and takes personal accountability for correcting them.", "Handles feedback openly and constructively."},
			LevelExceptional:      {"Spends extra effort to make sure the team delivers above expectations.", "Covers when there are issues in the team with extra effort."},
		},
	},
	{
		Key:        "teamwork",
		Name:       "Teamwork",
		Definition: "collaboration, support for colleagues, team participation",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Lacks in syncing and updating the team.", "Lacks in bonding or in creating a healthy co-worker relationship."},
			LevelNeedsImprovement: {"Not very active but available for internal stand up calls.", "Can build more bonding among co-workers."},
			LevelMeetsExpectation: {"Interacts well within the team, helps others and is available to help.", "Good rapport with developers, testers and leads."},
			LevelAboveExpectation: {"Supports the team well, shows empathy.", "Proactively supports members who are loaded with their tasks.", "Shares knowledge across the floor."},
			LevelExceptional:      {"Spends extra effort to make sure the team delivers above expectations.", "Covers when there are issues in the team with extra effort."},
		},
	},
	{
		Key:        "managing_processes_work",
		Name:       "Managing Processes & Work",
		Definition: "time management, process adherence, prioritization",
		Rubric: map[string][]string{
			LevelUnderperforming:  {"Has consistent availability issues.", "Does not participate in daily stand ups and other meetings on time."},
			LevelNeedsImprovement: {"Is not able to finish work on time.", "Does not consistently follow processes like updating the task board on time."},
			LevelMeetsExpectation: {"Participates in meetings and standups.", "Prioritizes tasks and does what is necessary to accomplish them on time.", "Updates the progress of tasks in the tracking tools."},
			LevelAboveExpectation: {"Plans upfront.", "Manages assigned tasks well along with non-project related tasks."},
			LevelExceptional:      {"Anticipates potential problems for upcoming tasks and acts for their quick resolution."},
		},
	},
}

// AreaNames returns the display names of every catalog area, in order.
func AreaNames() []string {
	names := make([]string, len(CompetencyCatalog))
	for i, area := range CompetencyCatalog {
		names[i] = area.Name
	}
	return names
}

// AreaByName looks an area up by its display name, case-sensitively. Coverage
// reports reference areas by name, not key.
func AreaByName(name string) (CompetencyArea, bool) {
	for _, area := range CompetencyCatalog {
		if area.Name == name {
			return area, true
		}
	}
	return CompetencyArea{}, false
}
