package models

type UserType string

const (
	UserCustomer UserType = "customer"
	UserWorker   UserType = "worker"
)

type JobCategory string

const (
	CategoryPlumbing        JobCategory = "Plumbing"
	CategoryElectrical      JobCategory = "Electrical"
	CategoryCarpentry       JobCategory = "Carpentry"
	CategoryMechanics       JobCategory = "Mechanics"
	CategoryPainting        JobCategory = "Painting"
	CategoryCleaning        JobCategory = "Cleaning"
	CategoryHVAC            JobCategory = "HVAC"
	CategoryGeneralHandyman JobCategory = "General Handyman"
	CategorySalon           JobCategory = "Salon"
	CategoryCarServices     JobCategory = "Car Services"
	CategoryOther           JobCategory = "Other"
)

// JobCategories lists every known category in display order.
var JobCategories = []JobCategory{
	CategoryPlumbing, CategoryElectrical, CategoryCarpentry, CategoryMechanics, CategoryPainting,
	CategoryCleaning, CategoryHVAC, CategoryGeneralHandyman, CategorySalon, CategoryCarServices, CategoryOther,
}

func (c JobCategory) Valid() bool {
	for _, k := range JobCategories {
		if k == c {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyLow       Urgency = "Low"
	UrgencyMedium    Urgency = "Medium"
	UrgencyHigh      Urgency = "High"
	UrgencyEmergency Urgency = "Emergency"
)

// Rank orders urgencies from most to least pressing; unknown values rank last.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyEmergency:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 3
	}
	return 4
}

func (u Urgency) Valid() bool { return u.Rank() < 4 }

type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeverityMajor    Severity = "Major"
	SeverityCritical Severity = "Critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeverityMajor, SeverityCritical:
		return true
	}
	return false
}

type PriceEstimate string

const (
	PriceAffordable    PriceEstimate = "Affordable"
	PriceModerate      PriceEstimate = "Moderate"
	PricePremium       PriceEstimate = "Premium"
	PriceRequiresQuote PriceEstimate = "Requires Quote"
)

func (p PriceEstimate) Valid() bool {
	switch p {
	case PriceAffordable, PriceModerate, PricePremium, PriceRequiresQuote:
		return true
	}
	return false
}

type JobStatus string

const (
	StatusPending        JobStatus = "Pending"
	StatusAIAnalyzing    JobStatus = "AI Analyzing"
	StatusAwaitingWorker JobStatus = "Awaiting Worker"
	StatusMatchesFound   JobStatus = "Matches Found"
	StatusAccepted       JobStatus = "Accepted"
	StatusInProgress     JobStatus = "In Progress"
	StatusCompleted      JobStatus = "Completed"
	StatusCancelled      JobStatus = "Cancelled"
	StatusDeclined       JobStatus = "Declined"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAIAnalyzing, StatusAwaitingWorker, StatusMatchesFound, StatusAccepted,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDeclined
}

type ActivationStatus string

const (
	ActivationPendingReview     ActivationStatus = "PENDING_REVIEW"
	ActivationActive            ActivationStatus = "ACTIVE"
	ActivationSuspended         ActivationStatus = "SUSPENDED"
	ActivationNeedsVerification ActivationStatus = "NEEDS_VERIFICATION"
)

func (a ActivationStatus) Valid() bool {
	switch a {
	case ActivationPendingReview, ActivationActive, ActivationSuspended, ActivationNeedsVerification:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationNone          VerificationStatus = "NONE"
	VerificationSubmitted     VerificationStatus = "SUBMITTED"
	VerificationInProgress    VerificationStatus = "IN_PROGRESS"
	VerificationVerified      VerificationStatus = "VERIFIED"
	VerificationChecked       VerificationStatus = "CHECKED"
	VerificationRejected      VerificationStatus = "REJECTED"
	VerificationPendingUpload VerificationStatus = "PENDING_UPLOAD"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationNone, VerificationSubmitted, VerificationInProgress, VerificationVerified,
		VerificationChecked, VerificationRejected, VerificationPendingUpload:
		return true
	}
	return false
}

// AvailableNow is the availability descriptor that ranks first in matching.
const AvailableNow = "Available Now"
