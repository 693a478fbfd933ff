// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"encoding/json"
	"fmt"
)

// GraphQL wire models. The backend exposes a single graphql entry point
// with mutations named Create<Entity>, Update<Entity>, Delete<Entity> and
// list queries named List<Entity plural>.

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors,omitempty"`
}

// listPage is the shape of a list query result: a page of items plus the
// continuation token.
type listPage struct {
	Items     []map[string]any `json:"items"`
	NextToken *string          `json:"nextToken"`
}

// selectionSets lists the wire fields requested per entity type. These
// mirror the backend's schema, not the local one (e.g. Business exposes
// businessName, Product exposes name).
var selectionSets = map[string]string{
	EntityBusiness: "id businessName phone address email settings version createdAt updatedAt",
	EntityCategory: "id name color version businessId createdAt updatedAt",
	EntityProduct:  "id name price description categoryId discount businessId createdAt updatedAt",
	EntityCustomer: "id name phone email notes businessId createdAt updatedAt",
	EntityOrder:    "id customerId customerName customerPhone items subtotal tax discount total status statusHistory paymentMethod paymentInfo notes businessId pickupDate createdAt updatedAt",
}

func selectionFor(typeName string) string {
	if sel, ok := selectionSets[typeName]; ok {
		return sel
	}
	return "id"
}

// pluralFor returns the backend's plural form used in list query names.
func pluralFor(typeName string) string {
	switch typeName {
	case EntityCategory:
		return "Categories"
	case EntityBusiness:
		return "Businesses"
	default:
		return typeName + "s"
	}
}

func createMutation(typeName string) string {
	return fmt.Sprintf(
		`mutation Create%[1]s($input: Create%[1]sInput!) { create%[1]s(input: $input) { %[2]s } }`,
		typeName, selectionFor(typeName))
}

func updateMutation(typeName string) string {
	return fmt.Sprintf(
		`mutation Update%[1]s($input: Update%[1]sInput!) { update%[1]s(input: $input) { %[2]s } }`,
		typeName, selectionFor(typeName))
}

func deleteMutation(typeName string) string {
	return fmt.Sprintf(
		`mutation Delete%[1]s($input: Delete%[1]sInput!) { delete%[1]s(input: $input) { id } }`,
		typeName)
}

func listQuery(typeName string) string {
	plural := pluralFor(typeName)
	return fmt.Sprintf(
		`query List%[1]s($limit: Int, $nextToken: String) { list%[1]s(limit: $limit, nextToken: $nextToken) { items { %[2]s } nextToken } }`,
		plural, selectionFor(typeName))
}

// Wire field names for the mutation/query response keys (camelCase).
func createField(typeName string) string { return "create" + typeName }
func updateField(typeName string) string { return "update" + typeName }
func deleteField(typeName string) string { return "delete" + typeName }
func listField(typeName string) string   { return "list" + pluralFor(typeName) }
