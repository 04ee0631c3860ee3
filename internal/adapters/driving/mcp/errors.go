// Package mcp exposes the question answering pipeline as an MCP (Model
// Context Protocol) server, so assistants can ask about pull request
// activity, inspect query plans and pull digests, trends and review queues.
package mcp

import "errors"

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("mcp: ask service is required")

// ErrEmptyQuestion is returned by tools called without a question.
var ErrEmptyQuestion = errors.New("mcp: question is required")

// ErrMissingReviewer is returned by review_queue when neither the call nor
// the server names a reviewer.
var ErrMissingReviewer = errors.New("mcp: reviewer is required")
