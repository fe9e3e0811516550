// internal/aifill/userinfo.go
package aifill

import (
	"fmt"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// currentlyEmployed stands in for the end date of a current job.
const currentlyEmployed = "재직중"

// The prompt shows the model the profile under the Korean labels the target
// forms use, in a fixed field order.

type userInfo struct {
	Personal   personalInfo      `json:"개인정보"`
	Education  educationInfo     `json:"학력"`
	Careers    []careerInfo      `json:"경력"`
	Activities []activityInfo    `json:"외부활동"`
	Languages  []languageInfo    `json:"어학점수"`
	Certs      []certificateInfo `json:"자격증"`
	Overseas   []overseasInfo    `json:"해외경험"`
	Trainings  []trainingInfo    `json:"교육이수"`
	Documents  documentInfo      `json:"증명서"`
	Disability disabilityInfo    `json:"장애보훈"`
}

type personalInfo struct {
	Name              string `json:"이름"`
	Email             string `json:"이메일"`
	Phone             string `json:"전화번호"`
	EmergencyContact  string `json:"긴급연락처"`
	AvailableDate     string `json:"입사가능일자"`
	Password          string `json:"비밀번호"`
	Birthdate         string `json:"생년월일"`
	Gender            string `json:"성별"`
	Address           string `json:"주소"`
	AddressDetail     string `json:"상세주소"`
	ApplicationPath   string `json:"지원경로"`
	DesiredSalary     string `json:"희망연봉"`
	PreviousSalary    string `json:"직전연봉"`
	Nationality       string `json:"국적"`
	NameEnglish       string `json:"영문명"`
	NameChinese       string `json:"한자명"`
	MilitaryService   string `json:"병역사항"`
	MilitaryBranch    string `json:"군별"`
	MilitaryRank      string `json:"계급"`
	MilitarySpecialty string `json:"병과"`
	Enlistment        string `json:"입대일"`
	Discharge         string `json:"전역일"`
}

type educationInfo struct {
	Highschool           string `json:"고등학교"`
	HighschoolAdmission  string `json:"고등학교_입학여부"`
	HighschoolGraduation string `json:"고등학교_졸업여부"`
	HighschoolStart      string `json:"고등학교_입학"`
	HighschoolEnd        string `json:"고등학교_졸업"`
	HighschoolType       string `json:"고등학교_계열"`
	University           string `json:"대학교"`
	Campus               string `json:"대학교_본교분교"`
	UniAdmission         string `json:"대학교_입학여부"`
	UniGraduation        string `json:"대학교_졸업여부"`
	DayNight             string `json:"대학교_주간야간"`
	UniStart             string `json:"대학교_입학"`
	UniEnd               string `json:"대학교_졸업"`
	DepartmentCategory   string `json:"학과계열"`
	Major                string `json:"전공"`
	MajorType            string `json:"전공여부"`
	Degree               string `json:"학위"`
	GPA                  string `json:"취득평점"`
	GPAMax               string `json:"전체평점"`
	MaxGPA               string `json:"기준학점"`
}

type careerInfo struct {
	Company     string `json:"회사명"`
	Department  string `json:"부서"`
	Position    string `json:"직급"`
	Employment  string `json:"고용형태"`
	Current     string `json:"재직중"`
	Start       string `json:"시작일"`
	End         string `json:"종료일"`
	Resignation string `json:"퇴직사유"`
	Description string `json:"업무내용"`
}

type activityInfo struct {
	Type         string `json:"분류"`
	Organization string `json:"기관"`
	Start        string `json:"시작일"`
	End          string `json:"종료일"`
	Name         string `json:"활동명"`
	Description  string `json:"내용"`
}

type languageInfo struct {
	TestType string `json:"시험종류"`
	Score    string `json:"점수"`
	Speaking string `json:"회화수준"`
	Date     string `json:"취득일"`
	Expiry   string `json:"만료일"`
}

type certificateInfo struct {
	Name         string `json:"자격증명"`
	Issuer       string `json:"발급기관"`
	Date         string `json:"취득일"`
	Registration string `json:"등록번호"`
	License      string `json:"자격번호"`
}

type overseasInfo struct {
	Country     string `json:"국가"`
	Purpose     string `json:"목적"`
	Start       string `json:"시작일"`
	End         string `json:"종료일"`
	Institution string `json:"기관명"`
	Description string `json:"내용"`
}

type trainingInfo struct {
	Name         string `json:"교육명"`
	Organization string `json:"교육기관"`
	Start        string `json:"교육시작일"`
	End          string `json:"교육종료일"`
	Hours        string `json:"교육시간"`
	Description  string `json:"활동내용"`
}

type documentInfo struct {
	Transcript  bool   `json:"성적증명서"`
	Graduation  bool   `json:"졸업증명서"`
	Certificate bool   `json:"자격증"`
	Language    bool   `json:"공인외국어"`
	Other       bool   `json:"기타"`
	Notes       string `json:"메모"`
}

type disabilityInfo struct {
	DisabilityStatus string `json:"장애사항"`
	DisabilityGrade  string `json:"장애등급"`
	VeteranStatus    string `json:"보훈여부"`
	VeteranGrade     string `json:"보훈등급"`
}

// promptDate renders a date as YYYY-MM-DD, filling a missing month or day
// with 01. Unparseable legacy strings pass through.
func promptDate(d schemas.DateValue) string {
	if d.IsZero() {
		return ""
	}
	s, ok := d.Structured()
	if !ok {
		return d.Legacy
	}
	month, day := s.Month, s.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return fmt.Sprintf("%d-%02d-%02d", s.Year, month, day)
}

// flattenProfile builds the view the model sees. Sections absent from p
// appear empty so the model always gets the same shape.
func flattenProfile(p *schemas.Profile) userInfo {
	info := userInfo{
		Careers:    []careerInfo{},
		Activities: []activityInfo{},
		Languages:  []languageInfo{},
		Certs:      []certificateInfo{},
		Overseas:   []overseasInfo{},
		Trainings:  []trainingInfo{},
	}
	if p == nil {
		return info
	}

	if pi := p.PersonalInfo; pi != nil {
		email := ""
		if id, domain := pi.Email.Parts(); id != "" && domain != "" {
			email = id + "@" + domain
		}
		info.Personal = personalInfo{
			Name:              pi.Name,
			Email:             email,
			Phone:             pi.Phone,
			EmergencyContact:  pi.EmergencyContact,
			AvailableDate:     pi.AvailableDate,
			Password:          pi.Password,
			Birthdate:         promptDate(pi.Birthdate),
			Gender:            pi.Gender,
			Address:           pi.Address,
			AddressDetail:     pi.AddressDetail,
			ApplicationPath:   pi.ApplicationPath,
			DesiredSalary:     pi.DesiredSalary,
			PreviousSalary:    pi.PreviousSalary,
			Nationality:       pi.Nationality,
			NameEnglish:       pi.NameEnglish,
			NameChinese:       pi.NameChinese,
			MilitaryService:   pi.MilitaryService,
			MilitaryBranch:    pi.MilitaryBranch,
			MilitaryRank:      pi.MilitaryRank,
			MilitarySpecialty: pi.MilitarySpecialty,
			Enlistment:        promptDate(pi.MilitaryEnlistmentDate),
			Discharge:         promptDate(pi.MilitaryDischargeDate),
		}
	}

	if ed := p.Education; ed != nil {
		if hs := ed.Highschool; hs != nil {
			info.Education.Highschool = hs.Name
			info.Education.HighschoolAdmission = hs.AdmissionStatus
			info.Education.HighschoolGraduation = hs.GraduationStatus
			info.Education.HighschoolStart = promptDate(hs.Start)
			info.Education.HighschoolEnd = promptDate(hs.Graduation)
			info.Education.HighschoolType = hs.Type
		}
		if u := ed.University; u != nil {
			info.Education.University = u.Name
			info.Education.Campus = u.CampusType
			info.Education.UniAdmission = u.AdmissionStatus
			info.Education.UniGraduation = u.GraduationStatus
			info.Education.DayNight = u.DayNight
			info.Education.UniStart = promptDate(u.Start)
			info.Education.UniEnd = promptDate(u.Graduation)
			info.Education.DepartmentCategory = u.DepartmentCategory
			info.Education.Major = u.Major
			info.Education.MajorType = u.MajorType
			info.Education.Degree = u.Degree
			info.Education.GPA = u.GPA
			info.Education.GPAMax = u.GPAMax
			info.Education.MaxGPA = u.MaxGPA
		}
	}

	for _, c := range p.Careers {
		ci := careerInfo{
			Company:     c.Company,
			Department:  c.Department,
			Position:    c.Position,
			Employment:  c.EmploymentType,
			Start:       promptDate(c.Start),
			End:         promptDate(c.End),
			Resignation: c.ResignationReason,
			Description: c.Description,
		}
		if c.IsCurrent {
			ci.Current = currentlyEmployed
			ci.End = currentlyEmployed
		}
		info.Careers = append(info.Careers, ci)
	}
	for _, a := range p.Activities {
		info.Activities = append(info.Activities, activityInfo{
			Type:         a.Type,
			Organization: a.Organization,
			Start:        promptDate(a.Start),
			End:          promptDate(a.End),
			Name:         a.Name,
			Description:  a.Description,
		})
	}
	for _, l := range p.LanguageScores {
		info.Languages = append(info.Languages, languageInfo{
			TestType: l.TestType,
			Score:    l.Score,
			Speaking: l.SpeakingLevel,
			Date:     promptDate(l.Date),
			Expiry:   promptDate(l.Expiry),
		})
	}
	for _, c := range p.Certificates {
		info.Certs = append(info.Certs, certificateInfo{
			Name:         c.Name,
			Issuer:       c.Issuer,
			Date:         promptDate(c.Date),
			Registration: c.RegistrationNumber,
			License:      c.LicenseNumber,
		})
	}
	for _, o := range p.Overseas {
		info.Overseas = append(info.Overseas, overseasInfo{
			Country:     o.Country,
			Purpose:     o.Purpose,
			Start:       promptDate(o.Start),
			End:         promptDate(o.End),
			Institution: o.Institution,
			Description: o.Description,
		})
	}
	for _, t := range p.Trainings {
		info.Trainings = append(info.Trainings, trainingInfo{
			Name:         t.Name,
			Organization: t.Organization,
			Start:        promptDate(t.Start),
			End:          promptDate(t.End),
			Hours:        t.Hours,
			Description:  t.Description,
		})
	}
	if d := p.Documents; d != nil {
		info.Documents = documentInfo{
			Transcript:  d.Transcript,
			Graduation:  d.Graduation,
			Certificate: d.Certificate,
			Language:    d.Language,
			Other:       d.Other,
			Notes:       d.Notes,
		}
	}
	if dv := p.DisabilityVeteran; dv != nil {
		info.Disability = disabilityInfo{
			DisabilityStatus: dv.DisabilityStatus,
			DisabilityGrade:  dv.DisabilityGrade,
			VeteranStatus:    dv.VeteranStatus,
			VeteranGrade:     dv.VeteranGrade,
		}
	}
	return info
}
