// Package types holds the interview domain model shared by the core, the
// stores and the HTTP surface.
package types

import "time"

// CandidateStatus tracks a candidate through the screening pipeline.
type CandidateStatus string

const (
	StatusScheduled  CandidateStatus = "INTERVIEW_SCHEDULED"
	StatusCanceled   CandidateStatus = "INTERVIEW_CANCELED"
	StatusInProgress CandidateStatus = "INTERVIEW_IN_PROGRESS"
	StatusComplete   CandidateStatus = "INTERVIEW_COMPLETE"
	StatusEvaluated  CandidateStatus = "EVALUATION_GENERATED"
)

// CandidateProfile is the candidate's contact and role metadata.
type CandidateProfile struct {
	CandidateID    string `json:"candidate_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Position       string `json:"position,omitempty"`
	ClientName     string `json:"client_name,omitempty"`
	ResumeFileName string `json:"resume_file_name,omitempty"`
	ResumeURL      string `json:"resume_url,omitempty"`
}

// ResumeSummary is produced upstream by the resume stage.
type ResumeSummary struct {
	ExperienceSummary          string   `json:"experience_summary,omitempty"`
	CoreTechnicalSkills        []string `json:"core_technical_skills,omitempty"`
	SpecializedTechnicalSkills []string `json:"specialized_technical_skills,omitempty"`
	CurrentProject             string   `json:"current_project,omitempty"`
	OtherNotableProjects       []string `json:"other_notable_projects,omitempty"`
	EducationCertification     string   `json:"education_certification,omitempty"`
	PotentialFlags             []string `json:"potential_flags,omitempty"`
	ResumeNotes                string   `json:"resume_notes,omitempty"`
}

// Scorecard rates six skill areas from 1 (poor) to 5 (excellent).
type Scorecard struct {
	SystemDesign   int `json:"system_design"`
	HandsOnCoding  int `json:"hands_on_coding"`
	Communication  int `json:"communication"`
	Confidence     int `json:"confidence"`
	Ownership      int `json:"ownership"`
	ProblemSolving int `json:"problem_solving"`
}

// Scores returns the scorecard fields keyed by their JSON names.
func (s Scorecard) Scores() map[string]int {
	return map[string]int{
		"system_design":   s.SystemDesign,
		"hands_on_coding": s.HandsOnCoding,
		"communication":   s.Communication,
		"confidence":      s.Confidence,
		"ownership":       s.Ownership,
		"problem_solving": s.ProblemSolving,
	}
}

type Recommendation string

const (
	Recommend    Recommendation = "Recommend"
	NotRecommend Recommendation = "Not Recommend"
)

// Evaluation is the evaluation policy's verdict on a finished interview.
type Evaluation struct {
	Scorecard      Scorecard      `json:"scorecard"`
	Summary        string         `json:"summary"`
	Recommendation Recommendation `json:"recommendation"`
}

// Candidate is the repository's view of one candidate.
type Candidate struct {
	Profile       CandidateProfile `json:"profile"`
	ResumeSummary *ResumeSummary   `json:"resume_summary,omitempty"`
	ResumeUsage   *StageUsage      `json:"resume_usage,omitempty"`
	Evaluation    *Evaluation      `json:"evaluation,omitempty"`
	Transcript    string           `json:"interview_transcript,omitempty"`
	Status        CandidateStatus  `json:"status,omitempty"`
	Cost          *AgentCost       `json:"cost,omitempty"`
	ScheduledAt   *time.Time       `json:"scheduled_time,omitempty"`
}

// CandidateUpdate is a partial update: only non-nil fields are written.
type CandidateUpdate struct {
	CandidateID string
	Transcript  *string
	Evaluation  *Evaluation
	Status      *CandidateStatus
	Cost        *AgentCost
}

// Empty reports whether the update carries no fields.
func (u CandidateUpdate) Empty() bool {
	return u.Transcript == nil && u.Evaluation == nil && u.Status == nil && u.Cost == nil
}

// Booking is a calendar invitee reduced to what the repository needs to
// upsert a candidate.
type Booking struct {
	Name        string
	Email       string
	Phone       string
	ScheduledAt *time.Time
	Status      CandidateStatus
}

// StatusPtr is a convenience for building partial updates.
func StatusPtr(s CandidateStatus) *CandidateStatus { return &s }

// CallBinding records which candidate a voice call belongs to. It is written
// when the call is placed so that a later webhook for the call can rebuild
// its session.
type CallBinding struct {
	CallID      string    `json:"call_id"`
	CandidateID string    `json:"candidate_id"`
	ControlURL  string    `json:"control_url"`
	StartedAt   time.Time `json:"started_at"`
}
