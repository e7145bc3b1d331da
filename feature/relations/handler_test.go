package relations

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"relation-manager/core/endpoint"
	"relation-manager/core/transaction"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, source *fakeSource, policy transaction.SyncPolicy) *fiber.App {
	app := fiber.New()
	NewHandler(newTestService(t, source, policy, true)).RegisterRoutes(app)
	return app
}

func ownerPath(relation string, owner endpoint.ObjectID) string {
	return "/relations/" + relation + "/" + owner.ClassID + "/" + owner.Value.String()
}

func TestHandleListRelations(t *testing.T) {
	app := setupTestApp(t, newSource(), transaction.SyncPolicyTolerate)

	resp, err := app.Test(httptest.NewRequest("GET", "/relations", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "Order.Items", body[0]["name"])
	assert.Equal(t, "one", body[1]["cardinality"])
}

func TestHandleCheck(t *testing.T) {
	source := newSource()
	order := object("Order")
	a, claimed := object("OrderItem"), object("OrderItem")
	source.set(order, a)
	app := setupTestApp(t, source, transaction.SyncPolicyReject)

	t.Run("Plain", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", ownerPath("Order.Items", order), nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var report Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, []string{a.String()}, report.Items)
		assert.Equal(t, "reject", report.Policy)
	})

	t.Run("Claims", func(t *testing.T) {
		target := ownerPath("Order.Items", order) + "?claim=" + url.QueryEscape(claimed.String())
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var report Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, []string{claimed.String()}, report.Unsynchronized)
		assert.NotEmpty(t, report.CommitError)
	})

	t.Run("Synchronize", func(t *testing.T) {
		target := ownerPath("Order.Items", order) + "?synchronize=true&claim=" + url.QueryEscape(claimed.String())
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		require.NoError(t, err)

		var report Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, []string{a.String(), claimed.String()}, report.Items)
		assert.Empty(t, report.CommitError)
	})
}

func TestHandleCheck_Errors(t *testing.T) {
	app := setupTestApp(t, newSource(), transaction.SyncPolicyTolerate)
	order := object("Order")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"Unknown Relation", ownerPath("Order.Nope", order), 404},
		{"Bad UUID", "/relations/Order.Items/Order/not-a-uuid", 400},
		{"Wrong Class", ownerPath("Order.Items", object("Customer")), 400},
		{"Bad Claim", ownerPath("Order.Items", order) + "?claim=garbage", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandleSnapshotLifecycle(t *testing.T) {
	source := newSource()
	order := object("Order")
	a := object("OrderItem")
	source.set(order, a)
	app := setupTestApp(t, source, transaction.SyncPolicyTolerate)
	path := ownerPath("Order.Items", order) + "/snapshot"

	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var report Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, []string{a.String()}, report.Items)

	resp, err = app.Test(httptest.NewRequest("GET", ownerPath("Order.Items", order)+"/drift", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var drift map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&drift))
	assert.Equal(t, float64(1), drift["summary"].(map[string]any)["total_items"])

	resp, err = app.Test(httptest.NewRequest("DELETE", path, nil))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestLoader(t *testing.T) {
	feature := NewFeature(newTestService(t, newSource(), transaction.SyncPolicyTolerate, false))

	assert.Equal(t, "relations", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NoError(t, feature.Load(fiber.New()))

	empty := NewFeature(NewService(newSource(), nil, transaction.SyncPolicyTolerate, nil, nil))
	assert.False(t, empty.IsEnabled())
}
