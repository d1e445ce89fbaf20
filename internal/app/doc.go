// Package app composes the backend's services into a running application.
//
// The package wires storage, the transcript pipeline, and background sync
// together and owns their lifecycle. Business logic lives in the service
// packages underneath it:
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # User profiles and call entries
//	│   ├── calllog/        # Raw call logs and conversation turns
//	│   └── insight/        # Extracted transcript insights
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # UserStore, CallLogStore
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── mongo/          # MongoDB implementation for production
//	├── services/           # Business logic
//	│   ├── calls/          # Transcript ingestion and Vapi sync
//	│   ├── insights/       # OpenAI transcript extraction
//	│   └── users/          # User context assembly and caching
//	├── httpapi/            # HTTP handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// Handlers in httpapi call services, services call stores, and nothing
// reaches back up the stack.
package app
