package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/repository"
	"agendabot-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	to, body string
	err      error
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) error {
	f.to, f.body = to, body
	return f.err
}

func seededEnv(t *testing.T) (*Env, *fakeSender, *bool) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	users := repository.NewUserRepo(st, "UTC")

	_, err := users.RegisterIfNew(ctx, "15550002")
	require.NoError(t, err)
	_, err = users.RegisterIfNew(ctx, "15550001")
	require.NoError(t, err)
	require.NoError(t, users.SetProfile(ctx, "15550001", models.Profile{Name: "Ada", Email: "ada@example.com"}))

	closed := false
	sender := &fakeSender{}
	return &Env{
		Users:  users,
		Sender: sender,
		Close: func() error {
			closed = true
			return nil
		},
	}, sender, &closed
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(ctx context.Context) (*Env, error) { return env, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"send", "users", "state"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	env, _, _ := seededEnv(t)
	_, err := run(t, env, "users", "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestSend(t *testing.T) {
	env, sender, closed := seededEnv(t)

	out, err := run(t, env, "send", "+15550001", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "+15550001", sender.to)
	assert.Equal(t, "hello there", sender.body)
	assert.Contains(t, out, "sent to 15550001")
	assert.True(t, *closed)
}

func TestSend_Failure(t *testing.T) {
	env, sender, _ := seededEnv(t)
	sender.err = errors.New("delivery failed")

	_, err := run(t, env, "send", "15550001", "hi")
	assert.EqualError(t, err, "delivery failed")
}

func TestSend_RequiresText(t *testing.T) {
	env, _, _ := seededEnv(t)
	_, err := run(t, env, "send", "15550001")
	assert.Error(t, err)
}

func TestUsers_Text(t *testing.T) {
	env, _, _ := seededEnv(t)

	out, err := run(t, env, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Ada")
	assert.Less(t, bytes.Index([]byte(out), []byte("15550001")), bytes.Index([]byte(out), []byte("15550002")))
}

func TestUsers_JSON(t *testing.T) {
	env, _, _ := seededEnv(t)

	out, err := run(t, env, "users", "--format", "json")
	require.NoError(t, err)

	var users []models.User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "15550001", users[0].ID)
	assert.Equal(t, "UTC", users[1].Settings.Timezone)
}

func TestState(t *testing.T) {
	env, _, _ := seededEnv(t)

	out, err := run(t, env, "state", "15550001")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "onboarding:  done")

	_, err = run(t, env, "state", "unknown")
	assert.ErrorContains(t, err, "not found")
}
