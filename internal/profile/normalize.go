// internal/profile/normalize.go
package profile

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// Normalize rewrites older record shapes in place so the fill code sees one
// form: parseable legacy date strings become structured dates, split
// year/month/day boxes fill an empty combined date, and a combined email with
// a single '@' is split. Unparseable legacy values are kept as they are.
func Normalize(p *schemas.Profile) {
	if p == nil {
		return
	}

	if pi := p.PersonalInfo; pi != nil {
		pi.Name = strings.TrimSpace(pi.Name)
		pi.Phone = strings.TrimSpace(pi.Phone)
		pi.EmergencyContact = strings.TrimSpace(pi.EmergencyContact)
		pi.Address = strings.TrimSpace(pi.Address)
		pi.AddressDetail = strings.TrimSpace(pi.AddressDetail)
		pi.NameEnglish = strings.TrimSpace(pi.NameEnglish)
		pi.Email = normalizeEmail(pi.Email)
		structure(&pi.Birthdate)
		structure(&pi.MilitaryEnlistmentDate)
		structure(&pi.MilitaryDischargeDate)
	}

	if ed := p.Education; ed != nil {
		if hs := ed.Highschool; hs != nil {
			hs.Name = strings.TrimSpace(hs.Name)
			structure(&hs.Start)
			structure(&hs.Graduation)
		}
		if u := ed.University; u != nil {
			u.Name = strings.TrimSpace(u.Name)
			u.Major = strings.TrimSpace(u.Major)
			structure(&u.Start)
			structure(&u.Graduation)
		}
	}

	for i := range p.Careers {
		c := &p.Careers[i]
		c.Company = strings.TrimSpace(c.Company)
		fold(&c.Start, schemas.SplitDate{Year: c.StartYear, Month: c.StartMonth, Day: c.StartDay})
		fold(&c.End, schemas.SplitDate{Year: c.EndYear, Month: c.EndMonth, Day: c.EndDay})
	}
	for i := range p.Activities {
		a := &p.Activities[i]
		fold(&a.Start, schemas.SplitDate{Year: a.StartYear, Month: a.StartMonth, Day: a.StartDay})
		fold(&a.End, schemas.SplitDate{Year: a.EndYear, Month: a.EndMonth, Day: a.EndDay})
	}
	for i := range p.Overseas {
		o := &p.Overseas[i]
		fold(&o.Start, schemas.SplitDate{Year: o.StartYear, Month: o.StartMonth, Day: o.StartDay})
		fold(&o.End, schemas.SplitDate{Year: o.EndYear, Month: o.EndMonth, Day: o.EndDay})
	}
	for i := range p.LanguageScores {
		l := &p.LanguageScores[i]
		fold(&l.Date, schemas.SplitDate{Year: l.DateYear, Month: l.DateMonth, Day: l.DateDay})
		fold(&l.Expiry, schemas.SplitDate{Year: l.ExpiryYear, Month: l.ExpiryMonth, Day: l.ExpiryDay})
	}
	for i := range p.Certificates {
		c := &p.Certificates[i]
		c.Name = strings.TrimSpace(c.Name)
		fold(&c.Date, schemas.SplitDate{Year: c.DateYear, Month: c.DateMonth, Day: c.DateDay})
	}
	for i := range p.Trainings {
		t := &p.Trainings[i]
		fold(&t.Start, schemas.SplitDate{Year: t.StartYear, Month: t.StartMonth, Day: t.StartDay})
		fold(&t.End, schemas.SplitDate{Year: t.EndYear, Month: t.EndMonth, Day: t.EndDay})
	}
}

// fold fills an empty date from its split boxes, then structures it.
func fold(d *schemas.DateValue, s schemas.SplitDate) {
	if d.IsZero() {
		if v, ok := splitToDate(s); ok {
			*d = v
			return
		}
	}
	structure(d)
}

func structure(d *schemas.DateValue) {
	if d.Kind != schemas.DateLegacy {
		return
	}
	if v, ok := d.Structured(); ok {
		*d = v
	}
}

func splitToDate(s schemas.SplitDate) (schemas.DateValue, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(s.Year))
	if err != nil || year <= 0 {
		return schemas.DateValue{}, false
	}
	month := atoiOrZero(s.Month)
	day := atoiOrZero(s.Day)
	if month < 0 || month > 12 || day < 0 || day > 31 {
		return schemas.DateValue{}, false
	}
	return schemas.NewDate(year, month, day), true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func normalizeEmail(e schemas.EmailValue) schemas.EmailValue {
	if e.Kind != schemas.EmailLegacy {
		return e
	}
	if id, domain := e.Parts(); id != "" && domain != "" {
		return schemas.NewEmail(id, domain)
	}
	return e
}
