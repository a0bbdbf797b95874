package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecialtyFor(t *testing.T) {
	tests := []struct {
		category Category
		want     Specialty
	}{
		{CategoryHeating, SpecialtyHeating},
		{CategoryPlumbing, SpecialtyPlumbing},
		{CategoryElectrical, SpecialtyElectrical},
		{CategoryOther, SpecialtyGeneral},
		{Category("roofing"), SpecialtyGeneral},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, SpecialtyFor(tt.category))
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("archived").Valid())
	assert.False(t, Category("roofing").Valid())
}

func TestCategory_Title(t *testing.T) {
	assert.Equal(t, "Heating", CategoryHeating.Title())
	assert.Equal(t, "Other", CategoryOther.Title())
}

func TestScope_Key(t *testing.T) {
	assert.Equal(t, "scope:t1:p1", Scope{TenantID: "t1", PropertyID: "p1"}.Key())
	assert.Equal(t, "issue:i1", Scope{TenantID: "t1", PropertyID: "p1", IssueID: "i1"}.Key())
}
