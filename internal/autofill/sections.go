// internal/autofill/sections.go
package autofill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/composite"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// PasswordKeywords finds the password box and its confirmation.
var PasswordKeywords = []string{"비밀번호", "password", "pw", "passwd"}

// mapping pairs a profile value with the keywords that locate its field.
type mapping struct {
	value    string
	keywords []string
}

// filler carries the collaborators a section writes through.
type filler struct {
	selector *matcher.Selector
	injector *injector.Injector
	splitter *composite.Splitter
	rc       *RunContext
	logger   *zap.Logger
}

// fillMappings writes each non-empty mapping into the field found at
// position index. A field that was found counts as filled even if its
// verification later failed; the record says so.
func (f *filler) fillMappings(ctx context.Context, mappings []mapping, index int) (int, error) {
	filled := 0
	var errs []error
	for _, m := range mappings {
		if m.value == "" {
			continue
		}
		field, ok, err := f.selector.Find(ctx, m.keywords, index, f.rc.Used)
		if err != nil {
			f.logger.Warn("Mapping lookup failed.", zap.Strings("keywords", m.keywords), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if rec, wrote := f.injector.Fill(ctx, field, m.value); wrote {
			f.rc.Record(rec)
		}
		filled++
	}
	return filled, errors.Join(errs...)
}

// absorb records a splitter result and returns its count.
func (f *filler) absorb(res composite.Result) int {
	f.rc.Record(res.Records...)
	return res.Filled
}

// step logs a failed personal-info extra step and tags its error.
func (f *filler) step(name string, err error) error {
	if err == nil {
		return nil
	}
	f.logger.Warn("Personal info step failed.", zap.String("step", name), zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

// section is one top-level profile category.
type section struct {
	name    string
	present func(p *schemas.Profile) bool
	fill    func(ctx context.Context, f *filler, p *schemas.Profile) (int, error)
}

// sections lists the categories in fill order.
var sections = []section{
	{"personalInfo", func(p *schemas.Profile) bool { return p.PersonalInfo != nil }, fillPersonalInfo},
	{"education", func(p *schemas.Profile) bool { return p.Education != nil }, fillEducation},
	{"careers", func(p *schemas.Profile) bool { return len(p.Careers) > 0 }, fillCareers},
	{"activities", func(p *schemas.Profile) bool { return len(p.Activities) > 0 }, fillActivities},
	{"overseas", func(p *schemas.Profile) bool { return len(p.Overseas) > 0 }, fillOverseas},
	{"languageScores", func(p *schemas.Profile) bool { return len(p.LanguageScores) > 0 }, fillLanguageScores},
	{"certificates", func(p *schemas.Profile) bool { return len(p.Certificates) > 0 }, fillCertificates},
	{"disabilityVeteran", func(p *schemas.Profile) bool { return p.DisabilityVeteran != nil }, fillDisabilityVeteran},
}

// SectionNames returns the section names in fill order.
func SectionNames() []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.name
	}
	return out
}

func fillPersonalInfo(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	pi := p.PersonalInfo
	style := p.DateStyle()

	filled, err := f.fillMappings(ctx, []mapping{
		{pi.Name, []string{"이름", "name", "성명", "한글명"}},
		{composite.FormatDate(pi.Birthdate, style), composite.BirthdateKeywords},
		{pi.Gender, []string{"성별", "gender", "남녀"}},
		{pi.Nationality, []string{"국적", "nationality", "국가"}},
		{pi.NameEnglish, []string{"영문명", "english", "영어이름"}},
		{pi.NameChinese, []string{"한자명", "chinese", "한자이름"}},
		{pi.Address, []string{"주소", "address", "거주지"}},
		{pi.MilitaryService, []string{"병역", "military", "군필", "미필"}},
	}, 0)
	errs := []error{err}

	if !pi.Birthdate.IsZero() {
		res, err := f.splitter.Date(ctx, pi.Birthdate, composite.BirthdateKeywords, style, f.rc.Used)
		filled += f.absorb(res)
		errs = append(errs, f.step("birthdate", err))
	}

	if pi.Password != "" {
		// The second lookup lands on the confirmation box.
		for index := 0; index < 2; index++ {
			field, ok, err := f.selector.Find(ctx, PasswordKeywords, index, f.rc.Used)
			if err != nil {
				errs = append(errs, f.step("password", err))
				break
			}
			if !ok {
				continue
			}
			if rec, wrote := f.injector.Fill(ctx, field, pi.Password); wrote {
				f.rc.Record(rec)
			}
			filled++
		}
	}

	if pi.Phone != "" {
		res, err := f.splitter.Phone(ctx, pi.Phone, composite.PhoneKeywords, f.rc.Used)
		filled += f.absorb(res)
		errs = append(errs, f.step("phone", err))
	}

	if !pi.Email.IsZero() {
		res, err := f.splitter.Email(ctx, pi.Email, composite.EmailKeywords, f.rc.Used, true)
		filled += f.absorb(res)
		errs = append(errs, f.step("email", err))
	}

	if pi.Photo != "" {
		// Counted once whatever the number of inputs that took the file.
		if _, err := f.injector.AttachPhoto(ctx, pi.Photo); err != nil {
			errs = append(errs, f.step("photo", err))
		} else {
			filled++
		}
	}

	return filled, errors.Join(errs...)
}

func fillEducation(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	filled := 0
	var errs []error

	if hs := p.Education.Highschool; hs != nil {
		n, err := f.fillMappings(ctx, []mapping{
			{hs.Name, []string{"고등학교", "highschool", "고교"}},
			{composite.FormatDate(hs.Start, style), []string{"고등학교입학", "고교입학"}},
			{composite.FormatDate(hs.Graduation, style), []string{"고등학교졸업", "고교졸업"}},
			{hs.Type, []string{"고등학교계열", "고교계열"}},
		}, 0)
		filled += n
		errs = append(errs, err)
	}

	if u := p.Education.University; u != nil {
		maxGPA := u.MaxGPA
		if maxGPA == "" {
			maxGPA = u.GPAMax
		}
		n, err := f.fillMappings(ctx, []mapping{
			{u.Name, []string{"대학교", "university", "대학"}},
			{composite.FormatDate(u.Start, style), []string{"대학교입학", "대학입학"}},
			{composite.FormatDate(u.Graduation, style), []string{"대학교졸업", "대학졸업"}},
			{u.Type, []string{"전공계열", "대학교계열", "대학계열"}},
			{u.Major, []string{"전공", "major", "학과"}},
			{u.Degree, []string{"학위", "degree"}},
			{u.GPA, []string{"학점", "gpa", "성적"}},
			{maxGPA, []string{"기준학점", "만점", "max"}},
		}, 0)
		filled += n
		errs = append(errs, err)
	}

	return filled, errors.Join(errs...)
}

// fillRepeated runs the mapping table of each entry at its own index, so the
// nth entry lands in the nth matching box.
func fillRepeated(ctx context.Context, f *filler, n int, table func(i int) []mapping) (int, error) {
	filled := 0
	var errs []error
	for i := 0; i < n; i++ {
		c, err := f.fillMappings(ctx, table(i), i)
		filled += c
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
		}
	}
	return filled, errors.Join(errs...)
}

func fillCareers(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	return fillRepeated(ctx, f, len(p.Careers), func(i int) []mapping {
		c := p.Careers[i]
		return []mapping{
			{c.Company, []string{"회사명", "company", "근무회사"}},
			{c.Department, []string{"소속", "부서", "department"}},
			{c.Position, []string{"직급", "직책", "position", "담당"}},
			{composite.FormatDate(c.Start, style), []string{"재직시작", "입사", "start"}},
			{composite.FormatDate(c.End, style), []string{"재직종료", "퇴사", "end"}},
			{c.Description, []string{"담당업무", "업무내용", "description"}},
		}
	})
}

func fillActivities(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	return fillRepeated(ctx, f, len(p.Activities), func(i int) []mapping {
		a := p.Activities[i]
		return []mapping{
			{a.Type, []string{"활동분류", "분류", "type"}},
			{a.Organization, []string{"기관", "장소", "organization"}},
			{composite.FormatDate(a.Start, style), []string{"활동시작", "시작연월"}},
			{composite.FormatDate(a.End, style), []string{"활동종료", "종료연월"}},
			{a.Name, []string{"활동명", "프로젝트명"}},
			{a.Description, []string{"활동내용", "내용", "description"}},
		}
	})
}

func fillOverseas(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	return fillRepeated(ctx, f, len(p.Overseas), func(i int) []mapping {
		o := p.Overseas[i]
		return []mapping{
			{o.Country, []string{"국가", "country"}},
			{o.Purpose, []string{"목적", "purpose"}},
			{composite.FormatDate(o.Start, style), []string{"해외시작", "시작기간"}},
			{composite.FormatDate(o.End, style), []string{"해외종료", "종료기간"}},
			{o.Institution, []string{"기관", "학교명", "institution"}},
			{o.Description, []string{"해외내용", "상세내용"}},
		}
	})
}

func fillLanguageScores(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	return fillRepeated(ctx, f, len(p.LanguageScores), func(i int) []mapping {
		s := p.LanguageScores[i]
		return []mapping{
			{s.TestType, []string{"어학시험", "test", "종류"}},
			{s.Score, []string{"점수", "score", "점"}},
			{composite.FormatDate(s.Date, style), []string{"취득일", "date", "시험일"}},
			{composite.FormatDate(s.Expiry, style), []string{"만료일", "expiry", "유효기간"}},
		}
	})
}

func fillCertificates(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	style := p.DateStyle()
	return fillRepeated(ctx, f, len(p.Certificates), func(i int) []mapping {
		c := p.Certificates[i]
		return []mapping{
			{c.Name, []string{"자격증명", "certificate", "자격"}},
			{c.Issuer, []string{"발급기관", "issuer", "기관"}},
			{c.RegistrationNumber, []string{"등록번호", "registration"}},
			{c.LicenseNumber, []string{"자격번호", "license"}},
			{composite.FormatDate(c.Date, style), []string{"취득일", "date", "발급일"}},
		}
	})
}

func fillDisabilityVeteran(ctx context.Context, f *filler, p *schemas.Profile) (int, error) {
	dv := p.DisabilityVeteran
	return f.fillMappings(ctx, []mapping{
		{dv.DisabilityStatus, []string{"장애사항", "disability"}},
		{dv.DisabilityGrade, []string{"장애등급", "disability_grade"}},
		{dv.VeteranStatus, []string{"보훈여부", "veteran"}},
		{dv.VeteranGrade, []string{"보훈등급", "veteran_grade"}},
	}, 0)
}
