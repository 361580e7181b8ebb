package models

// WorkerUpdate is a partial worker profile update. Nil fields are left untouched.
// Identity and credential fields have no counterpart here.
type WorkerUpdate struct {
	Name                    *string                  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	ProfileImageURL         *string                  `json:"profileImageUrl,omitempty" validate:"omitempty,max=2048"`
	Skills                  *[]JobCategory           `json:"skills,omitempty"`
	Rating                  *float64                 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	HomeAddress             *string                  `json:"homeAddress,omitempty"`
	WorkAddress             *string                  `json:"workAddress,omitempty"`
	Availability            *string                  `json:"availability,omitempty"`
	HourlyRateRange         *string                  `json:"hourlyRateRange,omitempty"`
	IsVerified              *bool                    `json:"isVerified,omitempty"`
	IsLicenseVerified       *bool                    `json:"isLicenseVerified,omitempty"`
	HasInsurance            *bool                    `json:"hasInsurance,omitempty"`
	Bio                     *string                  `json:"bio,omitempty" validate:"omitempty,max=4000"`
	ExperienceYears         *int                     `json:"experienceYears,omitempty" validate:"omitempty,gte=0,lte=80"`
	LicenseDetails          *string                  `json:"licenseDetails,omitempty"`
	Distance                *float64                 `json:"distance,omitempty" validate:"omitempty,gte=0"`
	Equipment               *[]string                `json:"equipment,omitempty"`
	Portfolio               *Portfolio               `json:"portfolio,omitempty"`
	PerformanceMetrics      *PerformanceMetrics      `json:"performanceMetrics,omitempty"`
	IsOnline                *bool                    `json:"isOnline,omitempty"`
	WorkingHours            *WorkingHours            `json:"workingHours,omitempty"`
	ServiceRadius           *float64                 `json:"serviceRadius,omitempty" validate:"omitempty,gte=0"`
	NotificationPreferences *NotificationPreferences `json:"notificationPreferences,omitempty"`
	MinimumCallOutFee       *float64                 `json:"minimumCallOutFee,omitempty" validate:"omitempty,gte=0"`
	ActivationStatus        *ActivationStatus        `json:"activationStatus,omitempty"`
	VerificationDetails     *VerificationDetails     `json:"verificationDetails,omitempty"`
}

// ManagedFields lists the set fields that only the platform may change:
// activation, verification and reputation. Workers editing their own profile
// may not send them.
func (u WorkerUpdate) ManagedFields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.Rating != nil, "rating")
	add(u.IsVerified != nil, "isVerified")
	add(u.IsLicenseVerified != nil, "isLicenseVerified")
	add(u.HasInsurance != nil, "hasInsurance")
	add(u.Distance != nil, "distance")
	add(u.PerformanceMetrics != nil, "performanceMetrics")
	add(u.ActivationStatus != nil, "activationStatus")
	add(u.VerificationDetails != nil, "verificationDetails")
	return out
}

// JobRequestUpdate is the partial update accepted on an existing job request.
// Status is never written directly: it selects a lifecycle action.
type JobRequestUpdate struct {
	Status           *JobStatus      `json:"status,omitempty"`
	AssignedWorkerID *string         `json:"assignedWorkerId,omitempty"`
	PaymentDetails   *PaymentDetails `json:"paymentDetails,omitempty"`
	Description      *string         `json:"description,omitempty"`
	Location         *string         `json:"location,omitempty"`
	RequestedDate    *string         `json:"requestedDate,omitempty"`
}

// JobRequestFilter narrows List results. Empty fields match everything.
type JobRequestFilter struct {
	CustomerID string
	WorkerID   string
	Status     JobStatus
}

// WorkerFilter narrows worker listings.
type WorkerFilter struct {
	Skill      JobCategory
	OnlineOnly bool
}
