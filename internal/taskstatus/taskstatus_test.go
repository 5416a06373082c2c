package taskstatus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		current   Status
		requested Status
		wantErr   error
	}{
		{name: "pending to in_progress", current: Pending, requested: InProgress},
		{name: "pending to completed", current: Pending, requested: Completed},
		{name: "in_progress to completed", current: InProgress, requested: Completed},
		{name: "pending to pending", current: Pending, requested: Pending, wantErr: ErrInvalidTransition},
		{name: "in_progress to pending", current: InProgress, requested: Pending, wantErr: ErrInvalidTransition},
		{name: "in_progress to in_progress", current: InProgress, requested: InProgress, wantErr: ErrInvalidTransition},
		{name: "completed to pending", current: Completed, requested: Pending, wantErr: ErrInvalidTransition},
		{name: "completed to in_progress", current: Completed, requested: InProgress, wantErr: ErrInvalidTransition},
		{name: "completed to completed", current: Completed, requested: Completed, wantErr: ErrInvalidTransition},
		{name: "archived is not a status", current: Pending, requested: "archived", wantErr: ErrInvalidStatus},
		{name: "hyphenated spelling", current: Pending, requested: "in-progress", wantErr: ErrInvalidStatus},
		{name: "empty", current: Pending, requested: "", wantErr: ErrInvalidStatus},
		{name: "invalid wins over terminal", current: Completed, requested: "archived", wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.current, tt.requested)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	candidates := append(All(), "archived", "")
	for _, from := range All() {
		for _, to := range candidates {
			first := Validate(from, to)
			second := Validate(from, to)
			if first == nil {
				assert.NoError(t, second, "%s -> %s", from, to)
				continue
			}
			require.Error(t, second, "%s -> %s", from, to)
			assert.Equal(t, first.Error(), second.Error())
		}
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := Validate(Pending, Pending)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, Pending, te.From)
	assert.Equal(t, Pending, te.To)
	assert.Equal(t, []Status{InProgress, Completed}, te.Allowed)
	assert.Equal(t, "invalid transition: allowed from pending -> [in_progress, completed]", err.Error())

	err = Validate(Completed, InProgress)
	assert.Equal(t, "invalid transition: allowed from completed -> []", err.Error())
}

func TestInvalidStatusErrorCarriesValue(t *testing.T) {
	err := Validate(Pending, "archived")

	var ise *InvalidStatusError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "archived", ise.Value)
	assert.NotErrorIs(t, err, ErrInvalidTransition)
}

func TestParse(t *testing.T) {
	for _, s := range All() {
		got, err := Parse(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := Parse("Completed")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAllowedReturnsCopy(t *testing.T) {
	next := Allowed(Pending)
	next[0] = Completed

	assert.Equal(t, []Status{InProgress, Completed}, Allowed(Pending))
	assert.Empty(t, Allowed("unknown"))
}

func TestTerminal(t *testing.T) {
	assert.False(t, IsTerminal(Pending))
	assert.False(t, IsTerminal(InProgress))
	assert.True(t, IsTerminal(Completed))
	assert.Equal(t, Pending, Initial())
}
