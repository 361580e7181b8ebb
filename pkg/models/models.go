package models

import "time"

// Domain models matching the database schema in db/migrations/0001_init.sql

type User struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name" validate:"required"`
	Email           string    `json:"email" db:"email" validate:"required,email"`
	Type            UserType  `json:"type" db:"type" validate:"required,oneof=customer worker"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty" db:"profile_image_url"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

type DaySchedule struct {
	IsActive  bool   `json:"isActive" yaml:"isActive"`
	StartTime string `json:"startTime" yaml:"startTime"`
	EndTime   string `json:"endTime" yaml:"endTime"`
}

type WorkingHours struct {
	Monday    DaySchedule `json:"monday" yaml:"monday"`
	Tuesday   DaySchedule `json:"tuesday" yaml:"tuesday"`
	Wednesday DaySchedule `json:"wednesday" yaml:"wednesday"`
	Thursday  DaySchedule `json:"thursday" yaml:"thursday"`
	Friday    DaySchedule `json:"friday" yaml:"friday"`
	Saturday  DaySchedule `json:"saturday" yaml:"saturday"`
	Sunday    DaySchedule `json:"sunday" yaml:"sunday"`
}

// Days returns the schedule entries in weekday order starting on Monday.
func (w *WorkingHours) Days() []*DaySchedule {
	return []*DaySchedule{&w.Monday, &w.Tuesday, &w.Wednesday, &w.Thursday, &w.Friday, &w.Saturday, &w.Sunday}
}

// DefaultWorkingHours is Monday to Friday, 09:00 to 17:00.
func DefaultWorkingHours() WorkingHours {
	on := DaySchedule{IsActive: true, StartTime: "09:00", EndTime: "17:00"}
	off := DaySchedule{IsActive: false, StartTime: "09:00", EndTime: "17:00"}
	return WorkingHours{Monday: on, Tuesday: on, Wednesday: on, Thursday: on, Friday: on, Saturday: off, Sunday: off}
}

type Portfolio struct {
	PhotoCount       int `json:"photoCount" yaml:"photoCount"`
	VideoCount       int `json:"videoCount" yaml:"videoCount"`
	TestimonialCount int `json:"testimonialCount" yaml:"testimonialCount"`
}

type PerformanceMetrics struct {
	AverageResponseTime string  `json:"averageResponseTime" yaml:"averageResponseTime"`
	CompletionRate      float64 `json:"completionRate" yaml:"completionRate"`
	RehirePercentage    float64 `json:"rehirePercentage" yaml:"rehirePercentage"`
}

type NotificationPreferences struct {
	NewJobAlerts  bool `json:"newJobAlerts" yaml:"newJobAlerts"`
	MessageAlerts bool `json:"messageAlerts" yaml:"messageAlerts"`
}

type VerificationDetails struct {
	IDVerifiedStatus      VerificationStatus `json:"idVerifiedStatus" yaml:"idVerifiedStatus"`
	BackgroundCheckStatus VerificationStatus `json:"backgroundCheckStatus" yaml:"backgroundCheckStatus"`
	ReferencesStatus      VerificationStatus `json:"referencesStatus" yaml:"referencesStatus"`
}

// Worker is the 1:1 profile extension of a worker-type User. ID equals the user id.
type Worker struct {
	ID                      string                  `json:"id" yaml:"id"`
	Name                    string                  `json:"name" yaml:"name"`
	ProfileImageURL         string                  `json:"profileImageUrl,omitempty" yaml:"profileImageUrl"`
	Skills                  []JobCategory           `json:"skills" yaml:"skills"`
	Rating                  float64                 `json:"rating" yaml:"rating"`
	HomeAddress             string                  `json:"homeAddress,omitempty" yaml:"homeAddress"`
	WorkAddress             string                  `json:"workAddress,omitempty" yaml:"workAddress"`
	Availability            string                  `json:"availability" yaml:"availability"`
	HourlyRateRange         string                  `json:"hourlyRateRange,omitempty" yaml:"hourlyRateRange"`
	IsVerified              bool                    `json:"isVerified" yaml:"isVerified"`
	IsLicenseVerified       bool                    `json:"isLicenseVerified" yaml:"isLicenseVerified"`
	HasInsurance            bool                    `json:"hasInsurance" yaml:"hasInsurance"`
	Bio                     string                  `json:"bio,omitempty" yaml:"bio"`
	ExperienceYears         int                     `json:"experienceYears" yaml:"experienceYears"`
	LicenseDetails          string                  `json:"licenseDetails,omitempty" yaml:"licenseDetails"`
	Distance                *float64                `json:"distance,omitempty" yaml:"distance"`
	Equipment               []string                `json:"equipment" yaml:"equipment"`
	Portfolio               Portfolio               `json:"portfolio" yaml:"portfolio"`
	PerformanceMetrics      PerformanceMetrics      `json:"performanceMetrics" yaml:"performanceMetrics"`
	IsOnline                bool                    `json:"isOnline" yaml:"isOnline"`
	WorkingHours            WorkingHours            `json:"workingHours" yaml:"workingHours"`
	ServiceRadius           float64                 `json:"serviceRadius" yaml:"serviceRadius"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences" yaml:"notificationPreferences"`
	MinimumCallOutFee       *float64                `json:"minimumCallOutFee,omitempty" yaml:"minimumCallOutFee"`
	ActivationStatus        ActivationStatus        `json:"activationStatus" yaml:"activationStatus"`
	VerificationDetails     VerificationDetails     `json:"verificationDetails" yaml:"verificationDetails"`
}

// HasSkill reports whether the worker lists c among their skills.
func (w *Worker) HasSkill(c JobCategory) bool {
	for _, s := range w.Skills {
		if s == c {
			return true
		}
	}
	return false
}

// Eligible reports whether the worker may appear in match results.
func (w *Worker) Eligible() bool {
	return w.IsOnline && w.ActivationStatus == ActivationActive
}

// ServiceAnalysis is the structured classification of a free-text request.
type ServiceAnalysis struct {
	JobType           JobCategory   `json:"jobType" yaml:"jobType"`
	Urgency           Urgency       `json:"urgency" yaml:"urgency"`
	Severity          Severity      `json:"severity" yaml:"severity"`
	EstimatedDuration string        `json:"estimatedDuration" yaml:"estimatedDuration"`
	PriceEstimate     PriceEstimate `json:"priceEstimate" yaml:"priceEstimate"`
}

type PaymentDetails struct {
	Amount   float64   `json:"amount"`
	PaidDate time.Time `json:"paidDate"`
}

type JobRequest struct {
	ID               string           `json:"id"`
	CustomerID       string           `json:"customerId"`
	CustomerName     string           `json:"customerName"`
	Description      string           `json:"description"`
	ServiceAnalysis  *ServiceAnalysis `json:"serviceAnalysis,omitempty"`
	Status           JobStatus        `json:"status"`
	Location         string           `json:"location"`
	RequestedDate    string           `json:"requestedDate,omitempty"`
	AssignedWorkerID string           `json:"assignedWorkerId,omitempty"`
	PaymentDetails   *PaymentDetails  `json:"paymentDetails,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type ChatThread struct {
	ID                   string    `json:"id"`
	ParticipantIDs       [2]string `json:"participantIds"`
	JobRequestID         string    `json:"jobRequestId,omitempty"`
	LastMessageID        string    `json:"lastMessageId,omitempty"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
	CreatedAt            time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (t *ChatThread) HasParticipant(userID string) bool {
	return t.ParticipantIDs[0] == userID || t.ParticipantIDs[1] == userID
}

// Other returns the participant that is not userID.
func (t *ChatThread) Other(userID string) string {
	if t.ParticipantIDs[0] == userID {
		return t.ParticipantIDs[1]
	}
	return t.ParticipantIDs[0]
}

type ChatMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

// PairKey orders two participant ids so the pair can be used as an unordered key.
func PairKey(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}
