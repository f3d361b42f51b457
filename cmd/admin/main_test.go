package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/admin"
	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
	"github.com/tendant/sealed-content/pkg/sealedcontent/presets"
)

func newRuntime(t *testing.T) *config.Runtime {
	t.Helper()
	return presets.NewTesting(t)
}

func runCommand(t *testing.T, rt *config.Runtime, command string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), rt, command, args, &out))
	return out.String()
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg       string
		wantKey   string
		wantValue string
	}{
		{"--limit=10", "limit", "10"},
		{"--dry-run", "dry-run", "true"},
		{"--content-type=text/plain", "content-type", "text/plain"},
		{"--password=a=b", "password", "a=b"},
		{"limit=10", "", ""},
		{"--", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			key, value := parseFlag(tt.arg)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestParseListRequest(t *testing.T) {
	req, err := parseListRequest(parseOptions([]string{"--content-type=image/png", "--limit=5", "--offset=10"}))
	require.NoError(t, err)
	require.NotNil(t, req.Filters.ContentType)
	assert.Equal(t, "image/png", *req.Filters.ContentType)
	assert.Equal(t, 5, *req.Filters.Limit)
	assert.Equal(t, 10, *req.Filters.Offset)

	_, err = parseListRequest(parseOptions([]string{"--owner-id=not-a-uuid"}))
	assert.Error(t, err)
	_, err = parseListRequest(parseOptions([]string{"--limit=many"}))
	assert.Error(t, err)
}

func TestRegisterAndAccounts(t *testing.T) {
	rt := newRuntime(t)

	out := runCommand(t, rt, "register", "--username=alice", "--password=Passw0rdX", "--admin", "--json")
	var registered map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &registered))
	assert.Equal(t, "alice", registered["username"])
	assert.EqualValues(t, sealedcontent.PrivilegeAdmin, registered["privilege"])
	assert.NotEmpty(t, registered["token"])

	out = runCommand(t, rt, "accounts", "--json")
	var accounts []admin.AccountSummary
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
}

func TestOrphanLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	bob, err := rt.Service.Register(ctx, sealedcontent.RegisterRequest{Username: "bob", Password: "Passw0rdX"})
	require.NoError(t, err)
	_, err = rt.Service.Upload(ctx, bob, sealedcontent.UploadRequest{
		FileName:    "a.txt",
		ContentType: "text/plain",
		Data:        []byte("payload"),
	})
	require.NoError(t, err)

	out := runCommand(t, rt, "list")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "Total: 1")

	out = runCommand(t, rt, "delete-account", "--username=bob")
	assert.Contains(t, out, "0 objects deleted, 1 orphaned")

	out = runCommand(t, rt, "stats")
	assert.Contains(t, out, "Orphans:  1 (7 bytes)")

	out = runCommand(t, rt, "purge-orphans", "--dry-run")
	assert.Contains(t, out, "dry run")

	out = runCommand(t, rt, "purge-orphans", "--json")
	var purge admin.PurgeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &purge))
	assert.Equal(t, 1, purge.Purged)
	assert.Equal(t, int64(7), purge.FreedBytes)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), newRuntime(t), "explode", nil, &out)
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestDeleteAccountRequiresUsername(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), newRuntime(t), "delete-account", nil, &out)
	assert.Error(t, err)
}
