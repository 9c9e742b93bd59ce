package storage

import (
	"alumni_network/internal/models"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = r.values[i].(int64)
		case *string:
			*v = r.values[i].(string)
		case **string:
			*v = r.values[i].(*string)
		case *bool:
			*v = r.values[i].(bool)
		case *time.Time:
			*v = r.values[i].(time.Time)
		case **time.Time:
			*v = r.values[i].(*time.Time)
		}
	}
	return nil
}

func TestScanUser(t *testing.T) {
	now := time.Now()
	phone := "0812345678"

	user, err := scanUser(fakeRow{values: []interface{}{
		int64(9), "a@x.com", "$2a$10$hash", "A", "graduate",
		&phone, (*string)(nil), (*string)(nil), true, now, now, (*time.Time)(nil),
	}})
	require.NoError(t, err)

	assert.Equal(t, int64(9), user.ID)
	assert.Equal(t, models.RoleGraduate, user.Role)
	assert.Equal(t, &phone, user.Phone)
	assert.Nil(t, user.SchoolName)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.LastLogin)
}

func TestNotFoundMapping(t *testing.T) {
	_, err := scanUser(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, notFound(err), ErrUserNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other))
}

func TestUserConditions(t *testing.T) {
	tests := []struct {
		name      string
		filter    models.UserFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "no filter",
			filter:    models.UserFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "directory",
			filter:    models.UserFilter{ActiveOnly: true, Role: models.RoleGraduate, Search: "ann"},
			wantWhere: " WHERE is_active = TRUE AND role = $1 AND name ILIKE $2",
			wantArgs:  []interface{}{"graduate", "%ann%"},
		},
		{
			name:      "admin search",
			filter:    models.UserFilter{Search: "ann", SearchEmail: true},
			wantWhere: " WHERE (name ILIKE $1 OR email ILIKE $1)",
			wantArgs:  []interface{}{"%ann%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := userConditions(tt.filter)

			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
