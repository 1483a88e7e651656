package models

import (
	"testing"
	"time"
)

func TestUserUpdate_IsEmpty(t *testing.T) {
	var u UserUpdate
	if !u.IsEmpty() {
		t.Error("zero update should be empty")
	}

	u.SetEnabled(true).UnsetToken(EnableUserToken)
	if u.IsEmpty() {
		t.Error("update with fields should not be empty")
	}
	if u.Enabled == nil || !*u.Enabled {
		t.Error("SetEnabled did not set the field")
	}
}

func TestUserUpdate_SetToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	var u UserUpdate
	u.SetToken(PasswordResetToken, "digest", exp)

	pair, ok := u.Tokens[PasswordResetToken]
	if !ok {
		t.Fatal("token pair not recorded")
	}
	if pair.Hash != "digest" || !pair.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected pair %+v", pair)
	}
}

func TestUserFilter_Normalize(t *testing.T) {
	f := UserFilter{Page: 0, PageSize: 500}
	f.Normalize()

	if f.Page != 1 {
		t.Errorf("Page = %d, want 1", f.Page)
	}
	if f.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want %d", f.PageSize, MaxPageSize)
	}

	f = UserFilter{Page: 3, PageSize: 20}
	f.Normalize()
	if f.Offset() != 40 {
		t.Errorf("Offset() = %d, want 40", f.Offset())
	}
}

func TestUserPage_TotalPages(t *testing.T) {
	p := UserPage{TotalItems: 21, PageSize: 10}
	if p.TotalPages() != 3 {
		t.Errorf("TotalPages() = %d, want 3", p.TotalPages())
	}
}
