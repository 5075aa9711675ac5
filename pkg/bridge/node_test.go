package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestBridge runs a node on an httptest server and returns a connected
// client.
func startTestBridge(t *testing.T, node *Node) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(node.HandleConnection))
	t.Cleanup(server.Close)

	client := NewClient(DefaultClientConfig)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, client.Dial(ctx, url, func(error) {}))
	return client
}

func TestNodeRoundTrip(t *testing.T) {
	node := NewNode(nil)
	node.Handle("echo", func(_ context.Context, args []string) (any, error) {
		return strings.Join(args, "|"), nil
	})

	client := startTestBridge(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Invoke(ctx, "echo", "a", "b")
	require.NoError(t, err)

	var out string
	require.NoError(t, res.DecodeResult(&out))
	assert.Equal(t, "a|b", out)
}

func TestNodeHandlerError(t *testing.T) {
	node := NewNode(nil)
	node.Handle("fail", func(context.Context, []string) (any, error) {
		return nil, errors.New("boom")
	})

	client := startTestBridge(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Invoke(ctx, "fail")
	require.NoError(t, err, "transport succeeds, the error travels in the response")
	assert.Equal(t, "boom", res.Error)
	assert.Error(t, res.Err())
}

func TestNodeUnknownRoute(t *testing.T) {
	client := startTestBridge(t, NewNode(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Invoke(ctx, "no/such/route")
	require.NoError(t, err)
	assert.Contains(t, res.Error, "unknown route")
}

func TestNodeConcurrentInvocations(t *testing.T) {
	node := NewNode(nil)
	node.Handle("id", func(_ context.Context, args []string) (any, error) {
		return args[0], nil
	})

	client := startTestBridge(t, node)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			want := strings.Repeat("x", n+1)
			res, err := client.Invoke(ctx, "id", want)
			if !assert.NoError(t, err) {
				return
			}

			var out string
			if !assert.NoError(t, res.DecodeResult(&out)) {
				return
			}
			assert.Equal(t, want, out, "responses match their own request ids")
		}(i)
	}
	wg.Wait()
}

func TestClientNotConnected(t *testing.T) {
	client := NewClient(DefaultClientConfig)
	assert.False(t, client.IsConnected())

	_, err := client.Invoke(context.Background(), "echo")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientDoubleDial(t *testing.T) {
	node := NewNode(nil)
	client := startTestBridge(t, node)

	err := client.Dial(context.Background(), "ws://localhost:1", func(error) {})
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}
