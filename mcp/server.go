// Package mcp exposes the fetch engine as MCP stdio tools.
// Sessions and persistence are handled only at this boundary; the tools
// operate on explicit inputs.
//
// Clients connect via stdio JSON-RPC: "tools/list" and "tools/call".
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/docfetch/internal/cache"
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}
type rpcResp struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]interface{}, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(resp)
}

// ---------- Tool registry ----------

// ToolDesc describes a single MCP tool, including input schema.
type ToolDesc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Server holds the shared engine (the only state).
type Server struct {
	Engine *cache.Engine
	logger *log.Logger

	tools []ToolDesc
}

// NewServer wires the MCP boundary around an already-constructed engine.
func NewServer(engine *cache.Engine) *Server {
	srv := &Server{
		Engine: engine,
		logger: log.New(os.Stderr, "[MCP] ", log.LstdFlags),
	}
	srv.initTools()
	return srv
}

func (srv *Server) initTools() {
	srv.tools = []ToolDesc{
		{
			Name:        "fetch_url",
			Description: "Fetch a URL, extract the readable content and return one token-budget-sized page. Use continuation_token from a previous response for the next page.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":                map[string]any{"type": "string"},
					"session_id":         map[string]any{"type": "string"},
					"max_tokens":         map[string]any{"type": "integer", "default": cache.DefaultPageSize},
					"max_timeout":        map[string]any{"type": "integer", "default": 60000, "description": "Upstream fetch timeout in milliseconds"},
					"extract_content":    map[string]any{"type": "boolean", "default": true, "description": "Extract the readable content; false returns the raw page HTML without pagination"},
					"page":               map[string]any{"type": "integer", "default": 1},
					"continuation_token": map[string]any{"type": "string"},
					"cache_content":      map[string]any{"type": "boolean", "default": true},
					"return_format": map[string]any{
						"type": "string",
						"enum": []string{"auto", "content_only", "full_html", "metadata"},
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "search_cache",
			Description: "Full-text search over the documents cached for this session.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"query":      map[string]any{"type": "string"},
					"k":          map[string]any{"type": "integer", "minimum": 1, "maximum": 25},
				},
				"required": []string{"session_id", "query"},
			},
		},
		{
			Name:        "create_session",
			Description: "Create a session under which fetched content is cached and continuation tokens are issued.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "destroy_session",
			Description: "Destroy a session and drop all content cached for it.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
				},
				"required": []string{"session_id"},
			},
		},
	}
}

// ---------- Tool dispatch ----------

func (srv *Server) callTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	switch name {
	case "fetch_url":
		return srv.fetchURL(ctx, args)
	case "search_cache":
		return srv.searchCache(args)
	case "create_session":
		return map[string]interface{}{"session_id": uuid.NewString()}, nil
	case "destroy_session":
		sessionID, _ := args["session_id"].(string)
		if sessionID == "" {
			return nil, errors.New("session_id required")
		}
		if err := srv.Engine.DestroySession(ctx, sessionID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"destroyed": true}, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (srv *Server) fetchURL(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return nil, errors.New("session_id required")
	}
	url, _ := args["url"].(string)
	tok, _ := args["continuation_token"].(string)
	if url == "" && tok == "" {
		return nil, errors.New("url or continuation_token required")
	}
	cacheEnabled := true
	if v, ok := args["cache_content"].(bool); ok {
		cacheEnabled = v
	}
	extract := true
	if v, ok := args["extract_content"].(bool); ok {
		extract = v
	}
	format, _ := args["return_format"].(string)

	res, err := srv.Engine.GetOrFetch(ctx, cache.Request{
		URL:               url,
		SessionID:         sessionID,
		Page:              intArg(args, "page"),
		PageSize:          intArg(args, "max_tokens"),
		ContinuationToken: tok,
		CacheEnabled:      cacheEnabled,
		MaxTimeout:        time.Duration(intArg(args, "max_timeout")) * time.Millisecond,
		RawHTML:           !extract,
	})
	if err != nil {
		return nil, err
	}

	// Raw markup path: no extraction happened, so there is nothing to
	// paginate.
	if res.Page.Number == 0 {
		return map[string]interface{}{
			"url":        res.URL,
			"html":       res.ContentHTML,
			"from_cache": false,
		}, nil
	}

	if format == "content_only" {
		return map[string]interface{}{"content": res.Content}, nil
	}

	pagination := map[string]interface{}{
		"page":         res.Page.Number,
		"page_size":    res.Page.PageSize,
		"total_pages":  res.Page.TotalPages,
		"total_tokens": res.Page.TotalTokens,
		"has_next":     res.Page.HasNext,
		"has_previous": res.Page.HasPrevious,
		"offset":       res.Page.Offset,
		"limit":        res.Page.Limit,
	}
	if res.ContinuationToken != "" {
		pagination["continuation_token"] = res.ContinuationToken
	}
	out := map[string]interface{}{
		"url":              res.URL,
		"title":            res.Title,
		"estimated_tokens": res.EstimatedTokens,
		"was_truncated":    res.WasTruncated,
		"from_cache":       res.FromCache,
		"pagination":       pagination,
	}
	switch format {
	case "metadata":
	case "full_html":
		out["content"] = res.Content
		out["content_markup"] = res.ContentHTML
	default:
		out["content"] = res.Content
	}
	return out, nil
}

func (srv *Server) searchCache(args map[string]interface{}) (map[string]interface{}, error) {
	sessionID, _ := args["session_id"].(string)
	query, _ := args["query"].(string)
	if sessionID == "" || query == "" {
		return nil, errors.New("session_id and query required")
	}
	hits, err := srv.Engine.Search(sessionID, query, intArg(args, "k"))
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []cache.SearchHit{}
	}
	return map[string]interface{}{"hits": hits}, nil
}

// intArg reads a JSON number argument; missing or mistyped yields 0.
func intArg(args map[string]interface{}, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}

// ---------- Stdio loop ----------

// Run serves JSON-RPC over r/w until EOF or ctx cancellation.
func (srv *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcReq
		if err := json.Unmarshal(line, &req); err != nil {
			srv.logger.Printf("bad request: %v", err)
			continue
		}

		switch req.Method {
		case "tools/list":
			writeResp(w, req.ID, map[string]interface{}{"tools": srv.tools}, nil)
		case "tools/call":
			name, _ := req.Params["name"].(string)
			args, _ := req.Params["arguments"].(map[string]interface{})
			result, err := srv.callTool(ctx, name, args)
			writeResp(w, req.ID, result, err)
		default:
			writeResp(w, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
	return scanner.Err()
}
