package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProjectValidate(t *testing.T) {
	ok := Project{Name: "vision", Status: ProjectActive, BackendTasks: []BackendTask{
		{Name: "ingest", Status: TaskDone, Progress: 100},
		{Name: "train", Status: TaskRunning, Progress: 40},
	}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}

	cases := map[string]Project{
		"empty name":     {Status: ProjectDraft},
		"bad status":     {Name: "x", Status: "deleted"},
		"bad task":       {Name: "x", Status: ProjectDraft, BackendTasks: []BackendTask{{Name: "t", Status: "weird"}}},
		"task progress":  {Name: "x", Status: ProjectDraft, BackendTasks: []BackendTask{{Name: "t", Status: TaskRunning, Progress: 101}}},
		"duplicate task": {Name: "x", Status: ProjectDraft, BackendTasks: []BackendTask{{Name: "t", Status: TaskDone}, {Name: "t", Status: TaskDone}}},
	}
	for name, p := range cases {
		err := p.Validate()
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: err = %v, want ErrInvalidRecord", name, err)
		}
	}
}

func TestProjectValidateSizeLimits(t *testing.T) {
	tasks := func(n int) []BackendTask {
		out := make([]BackendTask, n)
		for i := range out {
			out[i] = BackendTask{Name: fmt.Sprintf("task-%d", i), Status: TaskPending}
		}
		return out
	}
	atLimit := Project{
		Name:         "vision",
		Status:       ProjectActive,
		Description:  strings.Repeat("d", MaxProjectDescription),
		BackendTasks: append(tasks(MaxBackendTasks-1), BackendTask{Name: strings.Repeat("n", MaxBackendTaskName), Status: TaskDone}),
	}
	if err := atLimit.Validate(); err != nil {
		t.Fatalf("project at limits rejected: %v", err)
	}

	cases := map[string]Project{
		"long description": {Name: "x", Status: ProjectDraft, Description: strings.Repeat("d", MaxProjectDescription+1)},
		"too many tasks":   {Name: "x", Status: ProjectDraft, BackendTasks: tasks(MaxBackendTasks + 1)},
		"long task name":   {Name: "x", Status: ProjectDraft, BackendTasks: []BackendTask{{Name: strings.Repeat("n", MaxBackendTaskName+1), Status: TaskDone}}},
	}
	for name, p := range cases {
		if err := p.Validate(); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: err = %v, want ErrInvalidRecord", name, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	cases := []struct {
		tx   Transaction
		want bool
	}{
		{Transaction{Kind: TxPurchase, Amount: 100}, true},
		{Transaction{Kind: TxPurchase, Amount: 0}, false},
		{Transaction{Kind: TxSpend, Amount: -5}, true},
		{Transaction{Kind: TxSpend, Amount: 5}, false},
		{Transaction{Kind: TxRefund, Amount: 5}, true},
		{Transaction{Kind: "gift", Amount: 5}, false},
	}
	for _, tc := range cases {
		if got := tc.tx.Validate() == nil; got != tc.want {
			t.Errorf("%+v: valid = %v, want %v", tc.tx, got, tc.want)
		}
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunCompleted, RunFailed, RunCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunQueued, RunRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSecurityResultCritical(t *testing.T) {
	r := SecurityResult{Threats: []Threat{{Severity: SeverityWarning}}}
	if r.Critical() {
		t.Error("warning-only result reported critical")
	}
	r.Threats = append(r.Threats, Threat{Severity: SeverityCritical})
	if !r.Critical() {
		t.Error("critical threat not reported")
	}
}
