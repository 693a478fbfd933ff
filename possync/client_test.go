// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// roundTripFunc lets tests stub HTTP transport behavior.
type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *GraphQLClient {
	t.Helper()
	c := NewGraphQLClient("http://backend.test",
		func(ctx context.Context) (string, error) { return "test-token", nil }, nil)
	c.HTTP = &http.Client{Transport: rt}
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func decodeRequest(t *testing.T, req *http.Request) graphQLRequest {
	t.Helper()
	var gql graphQLRequest
	require.NoError(t, json.NewDecoder(req.Body).Decode(&gql))
	return gql
}

func TestCreateSendsMutationWithAuth(t *testing.T) {
	var captured graphQLRequest
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "http://backend.test/graphql", req.URL.String())
		require.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))
		captured = decodeRequest(t, req)
		return jsonResponse(200, `{"data":{"createCustomer":{"id":"c1","name":"Dana"}}}`), nil
	})

	obj, err := client.Create(context.Background(), EntityCustomer, map[string]any{"id": "c1", "name": "Dana"})
	require.NoError(t, err)
	require.Equal(t, "c1", obj["id"])
	require.Contains(t, captured.Query, "mutation CreateCustomer")
	require.Contains(t, captured.Query, "createCustomer(input: $input)")
	require.Equal(t, "Dana", captured.Variables["input"].(map[string]any)["name"])
}

func TestBackendErrorClassification(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":null,"errors":[{"errorType":"DynamoDB:ConditionalCheckFailedException","message":"The conditional request failed"}]}`), nil
	})

	_, err := client.Create(context.Background(), EntityCustomer, map[string]any{"id": "c1"})
	require.Error(t, err)
	require.True(t, IsConditionalCheckFailed(err))

	var be *BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, CodeConditionalCheckFailed, be.Code)
	require.Equal(t, "DynamoDB:ConditionalCheckFailedException", be.Type)
}

func TestClassifyErrorType(t *testing.T) {
	require.Equal(t, CodeUnauthorized, classifyErrorType("Unauthorized"))
	require.Equal(t, CodeThrottled, classifyErrorType("ThrottlingException"))
	require.Equal(t, CodeValidation, classifyErrorType("ValidationException"))
	require.Equal(t, CodeUnknown, classifyErrorType("SomethingElse"))
}

func TestHTTPErrorStatus(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `service unavailable`), nil
	})
	_, err := client.Create(context.Background(), EntityCustomer, map[string]any{"id": "c1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestDeleteKeyedByID(t *testing.T) {
	var captured graphQLRequest
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = decodeRequest(t, req)
		return jsonResponse(200, `{"data":{"deleteOrder":{"id":"o1"}}}`), nil
	})

	require.NoError(t, client.Delete(context.Background(), EntityOrder, "o1"))
	require.Contains(t, captured.Query, "mutation DeleteOrder")
	input := captured.Variables["input"].(map[string]any)
	require.Equal(t, "o1", input["id"])
}

func TestListPagination(t *testing.T) {
	var calls int
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		gql := decodeRequest(t, req)
		require.Contains(t, gql.Query, "query ListCategories")
		switch calls {
		case 1:
			require.NotContains(t, gql.Variables, "nextToken")
			return jsonResponse(200, `{"data":{"listCategories":{"items":[{"id":"a"},{"id":"b"}],"nextToken":"page2"}}}`), nil
		case 2:
			require.Equal(t, "page2", gql.Variables["nextToken"])
			return jsonResponse(200, `{"data":{"listCategories":{"items":[{"id":"c"}],"nextToken":null}}}`), nil
		default:
			return nil, fmt.Errorf("unexpected call %d", calls)
		}
	})

	items, err := client.List(context.Background(), EntityCategory, 100)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, items, 3)
	require.Equal(t, "a", items[0]["id"])
	require.Equal(t, "c", items[2]["id"])
}

func TestListRespectsLimit(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":{"listOrders":{"items":[{"id":"1"},{"id":"2"},{"id":"3"}],"nextToken":"more"}}}`), nil
	})

	items, err := client.List(context.Background(), EntityOrder, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestTokenFailureAbortsRequest(t *testing.T) {
	client := NewGraphQLClient("http://backend.test",
		func(ctx context.Context) (string, error) { return "", fmt.Errorf("keychain locked") }, nil)
	client.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("request must not be sent without a token")
		return nil, nil
	})}

	_, err := client.Create(context.Background(), EntityCustomer, map[string]any{"id": "c1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "keychain locked")
}
