// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🚀 go-possync - Offline-First POS Synchronization Core")
	fmt.Println("======================================================")
	fmt.Println()
	fmt.Println("go-possync keeps a point-of-sale device fully functional offline and")
	fmt.Println("reconciles its local document store with a GraphQL backend on demand.")
	fmt.Println()

	fmt.Println("📦 Packages:")
	fmt.Println()
	fmt.Println("1. 🗄️  docstore - JSON document store over SQLite")
	fmt.Println("   Schema-validated collections, filtered queries, change feed")
	fmt.Println()
	fmt.Println("2. 🔄 possync - entity repositories, sync services, orchestrator")
	fmt.Println("   Push-then-pull per entity, conflict detection, batched uploads")
	fmt.Println()

	fmt.Println("📚 Example:")
	fmt.Println()
	fmt.Println("   🧾 POS app walkthrough (examples/posapp/)")
	fmt.Println("   Seeds defaults, creates customers and orders, runs a full sync")
	fmt.Println("   Run: cd examples/posapp && go run .")
	fmt.Println()
}
