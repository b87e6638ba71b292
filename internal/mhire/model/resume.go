package model

// PersonalInformation 个人信息
type PersonalInformation struct {
	Name          *string `json:"name"`
	PhoneNumber   *string `json:"phone_number"`
	Email         *string `json:"email"`
	Gender        *string `json:"gender"`
	DateOfBirth   *string `json:"date_of_birth"`
	Summary       *string `json:"summary"`
	Country       *string `json:"country"`
	StreetAddress *string `json:"street_address"`
	CityState     *string `json:"city_state"`
	PostalCode    *string `json:"postal_code"`
}

// Education 教育经历
type Education struct {
	SchoolUniversity *string `json:"school_university"`
	Location         *string `json:"location"`
	Degree           *string `json:"degree"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
}

// WorkExperience 工作经历
type WorkExperience struct {
	JobTitle             *string `json:"job_title"`
	CompanyName          *string `json:"company_name"`
	Location             *string `json:"location"`
	CurrentlyWorkingHere *bool   `json:"currently_working_here"`
	StartDate            *string `json:"start_date"`
	EndDate              *string `json:"end_date"`
	Responsibility       *string `json:"responsibility"`
}

// JobPreferences 求职意向
type JobPreferences struct {
	JobCategories *string `json:"job_categories"`
	PayDay        *string `json:"pay_day"`
	SalaryRange   *string `json:"salary_range"`
	StartDate     *string `json:"start_date"`
	EndDate       *string `json:"end_date"`
}

// ResumeData is the structured form of an uploaded CV. Fields the model
// could not find are null.
type ResumeData struct {
	PersonalInformation PersonalInformation `json:"personal_information"`
	Education           []Education         `json:"education"`
	WorkExperience      []WorkExperience    `json:"work_experience"`
	JobPreferences      *JobPreferences     `json:"job_preferences"`
	Skills              []string            `json:"skills"`
}

// Normalize replaces nil slices so they serialise as empty arrays.
func (r *ResumeData) Normalize() {
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.WorkExperience == nil {
		r.WorkExperience = []WorkExperience{}
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
}
