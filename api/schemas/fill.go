// File: api/schemas/fill.go
package schemas

import "time"

// FieldDescriptor carries the matchable signals of one form element. It is
// recomputed on every run; the page may have changed in between.
type FieldDescriptor struct {
	Key                string `json:"key"`
	Tag                string `json:"tag"`
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Placeholder        string `json:"placeholder"`
	ClassName          string `json:"className"`
	Type               string `json:"type"`
	CurrentValue       string `json:"currentValue"`
	Autocomplete       string `json:"autocomplete"`
	AriaLabel          string `json:"ariaLabel"`
	AriaLabelledByText string `json:"ariaLabelledByText"`
	LabelText          string `json:"labelText"`
	ParentText         string `json:"parentText"`
	ToggleValue        string `json:"toggleValue,omitempty"`
	Accept             string `json:"accept,omitempty"`
	InForm             bool   `json:"inForm"`
	Hidden             bool   `json:"hidden"`
	Disabled           bool   `json:"disabled"`
	ReadOnly           bool   `json:"readOnly"`
	Checked            bool   `json:"checked"`
}

// IsSelect reports whether the descriptor belongs to a <select>.
func (d FieldDescriptor) IsSelect() bool { return d.Tag == "select" }

// IsToggle reports whether the element is a checkbox or radio button.
func (d FieldDescriptor) IsToggle() bool { return d.Type == "checkbox" || d.Type == "radio" }

// MatchCandidate is a scored element produced for one keyword-group query.
type MatchCandidate struct {
	Key   string
	Order int
	Score int
}

// FilledFieldRecord is one injector outcome, shown to the user at run end.
type FilledFieldRecord struct {
	Key          string `json:"key,omitempty"`
	Label        string `json:"label"`
	DisplayValue string `json:"value"`
	Success      bool   `json:"success"`
	Reason       string `json:"reason,omitempty"`
}

// RunState is a state of the deterministic fill state machine.
type RunState string

const (
	RunIdle           RunState = "idle"
	RunRunning        RunState = "running"
	RunPartialFailure RunState = "partial_failure"
	RunDone           RunState = "done"
)

// NotificationKind mirrors the two styles of the notification surface.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
)

// RunSummary is the result of one fill run.
type RunSummary struct {
	RunID         string              `json:"runId"`
	State         RunState            `json:"state"`
	Filled        int                 `json:"filled"`
	SectionErrors int                 `json:"sectionErrors"`
	Message       string              `json:"message"`
	Records       []FilledFieldRecord `json:"records"`
	StartedAt     time.Time           `json:"startedAt"`
	Duration      time.Duration       `json:"duration"`
}

// Suggestion is one still-unfilled field reported by the re-analysis pass.
type Suggestion struct {
	Selector    string   `json:"selector"`
	Label       string   `json:"label"`
	Suggestions []string `json:"suggestions"`
}
