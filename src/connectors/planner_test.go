package connectors

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

func TestPlannerRequestClassifiesPerLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/request", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var env struct {
			Payload PlannerRequest `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, "EO00000001", env.Payload.HeaderCode)
		require.Len(t, env.Payload.Lines, 2)

		_ = json.NewEncoder(w).Encode(PlannerResponse{Lines: []PlannerResponseLine{
			{LineNumber: "10", ReturnStatus: "SUCCESS", Quantity: 40, DispatchDate: "2024-03-01T00:00:00.000Z"},
			{LineNumber: "10.001", ReturnStatus: "SUCCESS", Quantity: 60},
			{LineNumber: "20", ReturnStatus: "FAILURE", ReturnCode: "XXXXXXXXXXXXXXXXXXABC123DEF45678", ReturnCodeDescription: "no capacity"},
		}})
	}))
	defer server.Close()

	sink := &memSink{}
	client := NewPlannerClient(testConfig(server.URL))
	res, err := client.Request(context.Background(), Call{Sink: sink}, PlannerRequest{
		HeaderCode: "EO00000001",
		Lines: []PlannerRequestLine{
			{LineNumber: "10", Quantity: 100, RequestType: model.RequestTypeNew},
			{LineNumber: "20", Quantity: 5, RequestType: model.RequestTypeNew},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "20", res.Failures[0].ItemNo)
	assert.Equal(t, "ABC123", res.Failures[0].FirstCode)
	assert.Equal(t, "DEF45678", res.Failures[0].SecondCode)
	assert.Equal(t, "no capacity", res.Failures[0].Message)

	ok := res.Succeeded()
	require.Len(t, ok, 2)
	assert.Equal(t, "10", ok[0].BaseLineNumber())
	assert.Equal(t, "10", ok[1].BaseLineNumber())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *ok[0].Dispatch())
	assert.Nil(t, ok[1].Dispatch())

	require.Len(t, sink.rows, 1)
	assert.Same(t, sink.rows[0], res.Log)
}

func TestPlannerConfirmFailureMarksRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ConfirmResponse{Lines: []ConfirmAck{
			{LineNumber: "10", ReturnStatus: "FAILURE", ReturnCodeDescription: "locked"},
		}})
	}))
	defer server.Close()

	sink := &memSink{}
	client := NewPlannerClient(testConfig(server.URL))
	res, err := client.Confirm(context.Background(), Call{Sink: sink, RetryOnFailure: true}, ConfirmRequest{
		HeaderCode: "0410000001",
		Lines:      []ConfirmLine{{LineNumber: "10", OriginalLineNumber: "10", Status: ConfirmCommit}},
	})
	require.Error(t, err)
	assert.Equal(t, failure.External, failure.KindOf(err))
	require.Len(t, res.Failures, 1)
	assert.Equal(t, []uint{res.Log.ID}, sink.retryable)
	assert.True(t, res.Log.Retry)
}

func TestPlannerConfirmSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ConfirmResponse{Lines: []ConfirmAck{{LineNumber: "10", ReturnStatus: "SUCCESS"}}})
	}))
	defer server.Close()

	sink := &memSink{}
	client := NewPlannerClient(testConfig(server.URL))
	res, err := client.Confirm(context.Background(), Call{Sink: sink, RetryOnFailure: true}, ConfirmRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Empty(t, sink.retryable)
}

func TestFormatPlannerDate(t *testing.T) {
	ts := time.Date(2024, 3, 1, 17, 30, 0, 0, time.FixedZone("ICT", 7*3600))
	assert.Equal(t, "2024-03-01T00:00:00.000Z", FormatPlannerDate(ts))
	assert.Equal(t, "10", BaseLineNumber("10.003"))
	assert.Equal(t, "10", BaseLineNumber("10"))
}
