package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
)

const queryModel = `import pyro
import pyro.distributions as dist

def model():
    a = pyro.sample("a", dist.Uniform(0., 1.))
    if a > 0.5:
        b = pyro.sample("b", dist.Normal(a, 1.))
`

func newShell(t *testing.T) (*queryShell, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	store := session.NewStore(zap.NewNop())
	out := &bytes.Buffer{}
	sh := &queryShell{
		ctx:   ctx,
		store: store,
		out:   out,
		open: func(path string) (session.Handle, error) {
			a, err := ppl.Lookup("pyro")
			if err != nil {
				return "", err
			}
			return store.Open(ctx, path, []byte(queryModel), a, session.Options{})
		},
	}
	require.NoError(t, sh.exec("open model.py"))
	out.Reset()
	return sh, out
}

func TestQueryShellModel(t *testing.T) {
	sh, out := newShell(t)
	require.NoError(t, sh.exec("model"))

	var m session.Model
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "model", m.Name)
}

func TestQueryShellVariablesAndControls(t *testing.T) {
	sh, out := newShell(t)
	require.NoError(t, sh.exec("rvs"))

	var rvs []session.RandomVariable
	require.NoError(t, json.Unmarshal(out.Bytes(), &rvs))
	require.Len(t, rvs, 2)

	var b session.RandomVariable
	for _, rv := range rvs {
		if strings.HasPrefix(rv.Node.SourceText, "b = ") {
			b = rv
		}
	}
	require.NotEmpty(t, b.Node.NodeID)

	out.Reset()
	require.NoError(t, sh.exec("controls "+b.Node.NodeID))
	var controls []session.ControlDependency
	require.NoError(t, json.Unmarshal(out.Bytes(), &controls))
	require.Len(t, controls, 1)
	assert.Equal(t, "a > 0.5", controls[0].ControlNode.SourceText)
}

func TestQueryShellErrors(t *testing.T) {
	sh, _ := newShell(t)

	assert.Error(t, sh.exec("frobnicate"))
	assert.ErrorContains(t, sh.exec("deps"), "usage: deps <id>")
	assert.Error(t, sh.exec("deps node_999999"))
	assert.ErrorContains(t, sh.exec("range node_1 broken"), "invalid assumption")
	assert.ErrorIs(t, sh.exec("quit"), errQuit)

	require.NoError(t, sh.exec("close"))
	assert.ErrorIs(t, sh.exec("model"), session.ErrUnknownHandle)
	assert.Error(t, sh.exec("close"))
}

func TestQueryShellHelp(t *testing.T) {
	sh, out := newShell(t)
	require.NoError(t, sh.exec("help"))
	for _, name := range []string{"rvs", "deps <id>", "paths <root>"} {
		assert.Contains(t, out.String(), name)
	}
	assert.NoError(t, sh.exec("   "))
}
