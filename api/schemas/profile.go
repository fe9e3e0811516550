// File: api/schemas/profile.go
package schemas

// ProfileStorageKey is the key under which the whole profile record is kept.
const ProfileStorageKey = "jobApplicationData"

// Profile is the applicant record read at the start of every run. The core
// never writes it. Absent sections are nil.
type Profile struct {
	AISettings        *AISettings        `json:"aiSettings,omitempty" yaml:"aiSettings,omitempty"`
	PersonalInfo      *PersonalInfo      `json:"personalInfo,omitempty" yaml:"personalInfo,omitempty"`
	Education         *Education         `json:"education,omitempty" yaml:"education,omitempty"`
	Careers           []Career           `json:"careers,omitempty" yaml:"careers,omitempty"`
	Activities        []Activity         `json:"activities,omitempty" yaml:"activities,omitempty"`
	Overseas          []Overseas         `json:"overseas,omitempty" yaml:"overseas,omitempty"`
	LanguageScores    []LanguageScore    `json:"languageScores,omitempty" yaml:"languageScores,omitempty"`
	Certificates      []Certificate      `json:"certificates,omitempty" yaml:"certificates,omitempty"`
	Trainings         []Training         `json:"educations,omitempty" yaml:"educations,omitempty"`
	Documents         *Documents         `json:"documents,omitempty" yaml:"documents,omitempty"`
	DisabilityVeteran *DisabilityVeteran `json:"disabilityVeteran,omitempty" yaml:"disabilityVeteran,omitempty"`
}

// DateStyle returns the profile's configured separator style, defaulting to hyphen.
func (p *Profile) DateStyle() DateStyle {
	if p == nil || p.PersonalInfo == nil || p.PersonalInfo.DateFormat == "" {
		return DateStyleHyphen
	}
	return p.PersonalInfo.DateFormat
}

// AISettings selects the language-model backend for the LLM fill mode.
type AISettings struct {
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty"`
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

type PersonalInfo struct {
	Name                   string     `json:"name,omitempty" yaml:"name,omitempty"`
	Birthdate              DateValue  `json:"birthdate" yaml:"birthdate,omitempty"`
	Phone                  string     `json:"phone,omitempty" yaml:"phone,omitempty"`
	EmergencyContact       string     `json:"emergencyContact,omitempty" yaml:"emergencyContact,omitempty"`
	AvailableDate          string     `json:"availableDate,omitempty" yaml:"availableDate,omitempty"`
	Password               string     `json:"password,omitempty" yaml:"password,omitempty"`
	Photo                  string     `json:"photo,omitempty" yaml:"photo,omitempty"`
	Gender                 string     `json:"gender,omitempty" yaml:"gender,omitempty"`
	Nationality            string     `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	NameEnglish            string     `json:"nameEnglish,omitempty" yaml:"nameEnglish,omitempty"`
	NameChinese            string     `json:"nameChinese,omitempty" yaml:"nameChinese,omitempty"`
	Email                  EmailValue `json:"email" yaml:"email,omitempty"`
	Address                string     `json:"address,omitempty" yaml:"address,omitempty"`
	AddressDetail          string     `json:"addressDetail,omitempty" yaml:"addressDetail,omitempty"`
	ApplicationPath        string     `json:"applicationPath,omitempty" yaml:"applicationPath,omitempty"`
	DesiredSalary          string     `json:"desiredSalary,omitempty" yaml:"desiredSalary,omitempty"`
	PreviousSalary         string     `json:"previousSalary,omitempty" yaml:"previousSalary,omitempty"`
	MilitaryService        string     `json:"militaryService,omitempty" yaml:"militaryService,omitempty"`
	MilitaryBranch         string     `json:"militaryBranch,omitempty" yaml:"militaryBranch,omitempty"`
	MilitaryRank           string     `json:"militaryRank,omitempty" yaml:"militaryRank,omitempty"`
	MilitarySpecialty      string     `json:"militarySpecialty,omitempty" yaml:"militarySpecialty,omitempty"`
	MilitaryDischargeType  string     `json:"militaryDischargeType,omitempty" yaml:"militaryDischargeType,omitempty"`
	MilitaryEnlistmentDate DateValue  `json:"militaryEnlistmentDate" yaml:"militaryEnlistmentDate,omitempty"`
	MilitaryDischargeDate  DateValue  `json:"militaryDischargeDate" yaml:"militaryDischargeDate,omitempty"`
	DateFormat             DateStyle  `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
}

type Education struct {
	Highschool *Highschool `json:"highschool,omitempty" yaml:"highschool,omitempty"`
	University *University `json:"university,omitempty" yaml:"university,omitempty"`
}

type Highschool struct {
	Name             string    `json:"name,omitempty" yaml:"name,omitempty"`
	AdmissionStatus  string    `json:"admissionStatus,omitempty" yaml:"admissionStatus,omitempty"`
	GraduationStatus string    `json:"graduationStatus,omitempty" yaml:"graduationStatus,omitempty"`
	Start            DateValue `json:"start" yaml:"start,omitempty"`
	Graduation       DateValue `json:"graduation" yaml:"graduation,omitempty"`
	Type             string    `json:"type,omitempty" yaml:"type,omitempty"`
}

type University struct {
	Name               string    `json:"name,omitempty" yaml:"name,omitempty"`
	CampusType         string    `json:"campusType,omitempty" yaml:"campusType,omitempty"`
	AdmissionStatus    string    `json:"admissionStatus,omitempty" yaml:"admissionStatus,omitempty"`
	GraduationStatus   string    `json:"graduationStatus,omitempty" yaml:"graduationStatus,omitempty"`
	DayNight           string    `json:"dayNight,omitempty" yaml:"dayNight,omitempty"`
	Start              DateValue `json:"start" yaml:"start,omitempty"`
	Graduation         DateValue `json:"graduation" yaml:"graduation,omitempty"`
	Type               string    `json:"type,omitempty" yaml:"type,omitempty"`
	DepartmentCategory string    `json:"departmentCategory,omitempty" yaml:"departmentCategory,omitempty"`
	Major              string    `json:"major,omitempty" yaml:"major,omitempty"`
	MajorType          string    `json:"majorType,omitempty" yaml:"majorType,omitempty"`
	Degree             string    `json:"degree,omitempty" yaml:"degree,omitempty"`
	GPA                string    `json:"gpa,omitempty" yaml:"gpa,omitempty"`
	GPAMax             string    `json:"gpaMax,omitempty" yaml:"gpaMax,omitempty"`
	MaxGPA             string    `json:"maxGpa,omitempty" yaml:"maxGpa,omitempty"`
}

// SplitDate holds the year/month/day text boxes some editor versions stored
// next to (or instead of) a combined date. Normalization folds it into the
// matching DateValue.
type SplitDate struct {
	Year  string
	Month string
	Day   string
}

type Career struct {
	Company           string    `json:"career_company,omitempty" yaml:"career_company,omitempty"`
	Department        string    `json:"career_department,omitempty" yaml:"career_department,omitempty"`
	Position          string    `json:"career_position,omitempty" yaml:"career_position,omitempty"`
	EmploymentType    string    `json:"career_employment_type,omitempty" yaml:"career_employment_type,omitempty"`
	IsCurrent         bool      `json:"career_is_current,omitempty" yaml:"career_is_current,omitempty"`
	Start             DateValue `json:"career_start" yaml:"career_start,omitempty"`
	End               DateValue `json:"career_end" yaml:"career_end,omitempty"`
	StartYear         string    `json:"career_start_year,omitempty" yaml:"career_start_year,omitempty"`
	StartMonth        string    `json:"career_start_month,omitempty" yaml:"career_start_month,omitempty"`
	StartDay          string    `json:"career_start_day,omitempty" yaml:"career_start_day,omitempty"`
	EndYear           string    `json:"career_end_year,omitempty" yaml:"career_end_year,omitempty"`
	EndMonth          string    `json:"career_end_month,omitempty" yaml:"career_end_month,omitempty"`
	EndDay            string    `json:"career_end_day,omitempty" yaml:"career_end_day,omitempty"`
	ResignationReason string    `json:"career_resignation_reason,omitempty" yaml:"career_resignation_reason,omitempty"`
	Description       string    `json:"career_description,omitempty" yaml:"career_description,omitempty"`
}

type Activity struct {
	Type         string    `json:"activity_type,omitempty" yaml:"activity_type,omitempty"`
	Organization string    `json:"activity_organization,omitempty" yaml:"activity_organization,omitempty"`
	Start        DateValue `json:"activity_start" yaml:"activity_start,omitempty"`
	End          DateValue `json:"activity_end" yaml:"activity_end,omitempty"`
	StartYear    string    `json:"activity_start_year,omitempty" yaml:"activity_start_year,omitempty"`
	StartMonth   string    `json:"activity_start_month,omitempty" yaml:"activity_start_month,omitempty"`
	StartDay     string    `json:"activity_start_day,omitempty" yaml:"activity_start_day,omitempty"`
	EndYear      string    `json:"activity_end_year,omitempty" yaml:"activity_end_year,omitempty"`
	EndMonth     string    `json:"activity_end_month,omitempty" yaml:"activity_end_month,omitempty"`
	EndDay       string    `json:"activity_end_day,omitempty" yaml:"activity_end_day,omitempty"`
	Name         string    `json:"activity_name,omitempty" yaml:"activity_name,omitempty"`
	Description  string    `json:"activity_description,omitempty" yaml:"activity_description,omitempty"`
}

type Overseas struct {
	Country     string    `json:"overseas_country,omitempty" yaml:"overseas_country,omitempty"`
	Purpose     string    `json:"overseas_purpose,omitempty" yaml:"overseas_purpose,omitempty"`
	Start       DateValue `json:"overseas_start" yaml:"overseas_start,omitempty"`
	End         DateValue `json:"overseas_end" yaml:"overseas_end,omitempty"`
	StartYear   string    `json:"overseas_start_year,omitempty" yaml:"overseas_start_year,omitempty"`
	StartMonth  string    `json:"overseas_start_month,omitempty" yaml:"overseas_start_month,omitempty"`
	StartDay    string    `json:"overseas_start_day,omitempty" yaml:"overseas_start_day,omitempty"`
	EndYear     string    `json:"overseas_end_year,omitempty" yaml:"overseas_end_year,omitempty"`
	EndMonth    string    `json:"overseas_end_month,omitempty" yaml:"overseas_end_month,omitempty"`
	EndDay      string    `json:"overseas_end_day,omitempty" yaml:"overseas_end_day,omitempty"`
	Institution string    `json:"overseas_institution,omitempty" yaml:"overseas_institution,omitempty"`
	Description string    `json:"overseas_description,omitempty" yaml:"overseas_description,omitempty"`
}

type LanguageScore struct {
	TestType      string    `json:"language_test_type,omitempty" yaml:"language_test_type,omitempty"`
	Score         string    `json:"language_score,omitempty" yaml:"language_score,omitempty"`
	SpeakingLevel string    `json:"language_speaking_level,omitempty" yaml:"language_speaking_level,omitempty"`
	Date          DateValue `json:"language_date" yaml:"language_date,omitempty"`
	Expiry        DateValue `json:"language_expiry" yaml:"language_expiry,omitempty"`
	DateYear      string    `json:"language_date_year,omitempty" yaml:"language_date_year,omitempty"`
	DateMonth     string    `json:"language_date_month,omitempty" yaml:"language_date_month,omitempty"`
	DateDay       string    `json:"language_date_day,omitempty" yaml:"language_date_day,omitempty"`
	ExpiryYear    string    `json:"language_expiry_year,omitempty" yaml:"language_expiry_year,omitempty"`
	ExpiryMonth   string    `json:"language_expiry_month,omitempty" yaml:"language_expiry_month,omitempty"`
	ExpiryDay     string    `json:"language_expiry_day,omitempty" yaml:"language_expiry_day,omitempty"`
}

type Certificate struct {
	Name               string    `json:"certificate_name,omitempty" yaml:"certificate_name,omitempty"`
	Issuer             string    `json:"certificate_issuer,omitempty" yaml:"certificate_issuer,omitempty"`
	RegistrationNumber string    `json:"certificate_registration_number,omitempty" yaml:"certificate_registration_number,omitempty"`
	LicenseNumber      string    `json:"certificate_license_number,omitempty" yaml:"certificate_license_number,omitempty"`
	Date               DateValue `json:"certificate_date" yaml:"certificate_date,omitempty"`
	DateYear           string    `json:"certificate_date_year,omitempty" yaml:"certificate_date_year,omitempty"`
	DateMonth          string    `json:"certificate_date_month,omitempty" yaml:"certificate_date_month,omitempty"`
	DateDay            string    `json:"certificate_date_day,omitempty" yaml:"certificate_date_day,omitempty"`
}

// Training is a completed course (교육이수).
type Training struct {
	Name         string    `json:"education_name,omitempty" yaml:"education_name,omitempty"`
	Organization string    `json:"education_organization,omitempty" yaml:"education_organization,omitempty"`
	Start        DateValue `json:"education_start" yaml:"education_start,omitempty"`
	End          DateValue `json:"education_end" yaml:"education_end,omitempty"`
	StartYear    string    `json:"education_start_year,omitempty" yaml:"education_start_year,omitempty"`
	StartMonth   string    `json:"education_start_month,omitempty" yaml:"education_start_month,omitempty"`
	StartDay     string    `json:"education_start_day,omitempty" yaml:"education_start_day,omitempty"`
	EndYear      string    `json:"education_end_year,omitempty" yaml:"education_end_year,omitempty"`
	EndMonth     string    `json:"education_end_month,omitempty" yaml:"education_end_month,omitempty"`
	EndDay       string    `json:"education_end_day,omitempty" yaml:"education_end_day,omitempty"`
	Hours        string    `json:"education_hours,omitempty" yaml:"education_hours,omitempty"`
	Description  string    `json:"education_description,omitempty" yaml:"education_description,omitempty"`
}

type Documents struct {
	Transcript  bool   `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Graduation  bool   `json:"graduation,omitempty" yaml:"graduation,omitempty"`
	Certificate bool   `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	Language    bool   `json:"language,omitempty" yaml:"language,omitempty"`
	Other       bool   `json:"other,omitempty" yaml:"other,omitempty"`
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type DisabilityVeteran struct {
	DisabilityStatus string `json:"disabilityStatus,omitempty" yaml:"disabilityStatus,omitempty"`
	DisabilityGrade  string `json:"disabilityGrade,omitempty" yaml:"disabilityGrade,omitempty"`
	VeteranStatus    string `json:"veteranStatus,omitempty" yaml:"veteranStatus,omitempty"`
	VeteranGrade     string `json:"veteranGrade,omitempty" yaml:"veteranGrade,omitempty"`
}
