package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

func TestClient_FetchTreeWithSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "watchdesk_session", Value: "signed", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/trees/complaints", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("watchdesk_session"); err != nil || c.Value != "signed" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apierr.NewUnauthorized("Please sign in"))
			return
		}
		_, _ = io.WriteString(w, `[{"id":"movement","label":"Movement","position":0,"children":[
			{"id":"stopped","label":"Stopped","default_spare_part_id":"mainspring","position":0,"children":[]}]}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.FetchTree(ctx, taxonomy.Complaints)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Please sign in", apierr.MessageFor(err, apierr.FallbackLoadTree))

	require.NoError(t, c.Login(ctx, "admin@watchdesk.test", "secret"))
	nodes, err := c.FetchTree(ctx, taxonomy.Complaints)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "mainspring", *nodes[0].Children[0].DefaultSparePartID)
}

func TestClient_ErrorEnvelopes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/estimates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(apierr.NewValidation("One or more fields are invalid",
			apierr.FieldError{Field: "complaint_node_ids", Message: "unknown complaint ghost"}))
	})
	mux.HandleFunc("GET /api/spare-parts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.CalculateCost(ctx, selection.JobIssueSelection{ComplaintNodeIDs: []string{"ghost"}})
	require.Error(t, err)
	assert.Equal(t, "One or more fields are invalid (complaint_node_ids: unknown complaint ghost)",
		apierr.MessageFor(err, apierr.FallbackCalculateCost))

	_, err = c.ListSpareParts(ctx)
	require.Error(t, err)
	var env *apierr.Envelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, apierr.CodeBackendUnavailable, env.Code)
	assert.Equal(t, apierr.FallbackLoadParts, apierr.MessageFor(err, apierr.FallbackLoadParts))
}

func TestClient_CalculateCostAndPatch(t *testing.T) {
	var gotPatch map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/estimates", func(w http.ResponseWriter, r *http.Request) {
		var sel selection.JobIssueSelection
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sel))
		assert.Equal(t, []string{"stopped"}, sel.ComplaintNodeIDs)
		_, _ = io.WriteString(w, `{"estimated_total":"1190","total_labour_cost":"750","total_parts_cost":"440",
			"ucp_rate":"500","max_estimated_delivery_days":12,"lines":[]}`)
	})
	mux.HandleFunc("PATCH /api/trees/complaints/nodes/stopped", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPatch))
		_, _ = io.WriteString(w, `{"id":"stopped","label":"Stopped","parent_id":null,"default_spare_part_id":null,"position":0}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	b, err := c.CalculateCost(ctx, selection.JobIssueSelection{ComplaintNodeIDs: []string{"stopped"}})
	require.NoError(t, err)
	assert.True(t, b.EstimatedTotal.Equal(decimal.NewFromInt(1190)))
	assert.Equal(t, 12, b.MaxEstimatedDeliveryDays)

	n, err := c.UpdateNode(ctx, taxonomy.Complaints, "stopped", taxonomy.NodePatch{DefaultSparePartID: taxonomy.ClearID()})
	require.NoError(t, err)
	assert.Nil(t, n.DefaultSparePartID)
	assert.Equal(t, map[string]any{"default_spare_part_id": nil}, gotPatch)
}

func TestClient_NetworkFailureUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).ListPricingRules(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierr.FallbackLoadRules, apierr.MessageFor(err, apierr.FallbackLoadRules))
}

func TestClient_DeadlineComesFromContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pricing-rules", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	assert.Zero(t, c.http.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ListPricingRules(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
