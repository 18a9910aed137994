package reactor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// ToolCatalog holds plain tools and Agent-Tool specs together, and is what
// the loop hands the provider as CompletionRequest.Tools.
type ToolCatalog struct {
	plain    map[string]Tool
	compiled map[string]*jsonschema.Schema // plain tool argument validators
	registry *AgentRegistry
}

// NewToolCatalog builds a catalog over the given plain tools plus every
// ExposeAsTool agent currently in registry. Each plain tool's schema is
// compiled once at construction time (santhosh-tekuri/jsonschema/v5); a
// compile failure is fatal and returned immediately rather than deferred to
// first call — fail fast at registration time, not at first use.
func NewToolCatalog(tools []Tool, registry *AgentRegistry) (*ToolCatalog, error) {
	c := &ToolCatalog{
		plain:    make(map[string]Tool, len(tools)),
		compiled: make(map[string]*jsonschema.Schema, len(tools)),
		registry: registry,
	}
	for _, t := range tools {
		c.plain[t.Name()] = t
		sch, err := compileSchema(t.Schema())
		if err != nil {
			return nil, fmt.Errorf("reactor: compiling schema for tool %q: %w", t.Name(), err)
		}
		c.compiled[t.Name()] = sch
	}
	return c, nil
}

func compileSchema(s ToolSchema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s.Parameters)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(s.Name+".json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(s.Name + ".json")
}

// Schemas returns every ToolSchema the LLM should see: plain tools as-is,
// plus one synthesized schema per ExposeAsTool agent spec.
func (c *ToolCatalog) Schemas() []ToolSchema {
	out := make([]ToolSchema, 0, len(c.plain))
	for _, t := range c.plain {
		out = append(out, t.Schema())
	}
	for _, spec := range c.registry.List() {
		if spec.ExposeAsTool {
			out = append(out, ToolSchemaFor(spec))
		}
	}
	return out
}

func (c *ToolCatalog) isAgentTool(name string) bool {
	_, ok := c.registry.Get(name)
	return ok
}

// ToolInvoker dispatches one tool call to either the plain-tool path or the
// Agent-Tool path (§4.2), each under its own independent timeout.
type ToolInvoker struct {
	catalog *ToolCatalog
	pool    *AgentPool
	ctxMgr  *ContextManager
	cfg     Config
	sem     chan struct{} // optional concurrency limiter, §5 expansion
	tracer  *Tracer
}

// NewToolInvoker constructs an invoker. If cfg.ToolConcurrency > 0 a bounded
// semaphore limits in-flight tool goroutines process-wide, mirroring the
// teacher's Executor.sem in internal/agent/executor.go.
func NewToolInvoker(catalog *ToolCatalog, pool *AgentPool, ctxMgr *ContextManager, cfg Config) *ToolInvoker {
	inv := &ToolInvoker{catalog: catalog, pool: pool, ctxMgr: ctxMgr, cfg: cfg, tracer: noopTracer()}
	if cfg.ToolConcurrency > 0 {
		inv.sem = make(chan struct{}, cfg.ToolConcurrency)
	}
	return inv
}

// WithTracer attaches a Tracer whose spans wrap each dispatched tool call.
// Returns inv for chaining at construction time.
func (inv *ToolInvoker) WithTracer(tracer *Tracer) *ToolInvoker {
	if tracer != nil {
		inv.tracer = tracer
	}
	return inv
}

// DispatchResult is the per-call outcome the loop turns into a tool-message
// and a ToolCallRecord.
type DispatchResult struct {
	Call            models.ToolCall
	Content         string
	IsError         bool
	Status          models.ResultStatus
	DurationMs      int64
	ParkedAgent     *models.AgentPoolEntry  // non-nil if this call parked an agent
	ApprovalRequest *models.ApprovalRequest // non-nil if this call needs approval
}

// DispatchAll runs every call concurrently and returns results in the same
// order as calls, regardless of completion order — grounded on
// internal/agent/executor.go's ExecuteAll (WaitGroup fan-out over an
// indexed result slice).
func (inv *ToolInvoker) DispatchAll(ctx context.Context, tenantID string, calls []models.ToolCall) []DispatchResult {
	results := make([]DispatchResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call models.ToolCall) {
			defer wg.Done()
			if inv.sem != nil {
				inv.sem <- struct{}{}
				defer func() { <-inv.sem }()
			}
			results[i] = inv.dispatchOne(ctx, tenantID, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (inv *ToolInvoker) dispatchOne(ctx context.Context, tenantID string, call models.ToolCall) DispatchResult {
	start := time.Now()
	ctx, span := inv.tracer.startToolSpan(ctx, call.Name)

	var res DispatchResult
	if inv.catalog.isAgentTool(call.Name) {
		res = inv.dispatchAgentTool(ctx, tenantID, call)
	} else {
		res = inv.dispatchPlainTool(ctx, call)
	}
	res.DurationMs = time.Since(start).Milliseconds()

	var spanErr error
	if res.IsError {
		spanErr = fmt.Errorf("%s", res.Content)
	}
	endSpan(span, spanErr)
	return res
}

func (inv *ToolInvoker) dispatchPlainTool(ctx context.Context, call models.ToolCall) DispatchResult {
	t, ok := inv.catalog.plain[call.Name]
	if !ok {
		return DispatchResult{Call: call, Content: fmt.Sprintf("Tool %s is not registered", call.Name), IsError: true, Status: models.ResultError}
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return inv.errorResult(call, newToolError(ToolErrBadShape, call.Name, call.ID, "arguments must be a JSON object", err))
		}
	} else {
		args = map[string]any{}
	}
	if sch, ok := inv.catalog.compiled[call.Name]; ok {
		if err := sch.Validate(args); err != nil {
			return inv.errorResult(call, newToolError(ToolErrBadShape, call.Name, call.ID, err.Error(), err))
		}
	}

	cctx, cancel := context.WithTimeout(ctx, inv.cfg.ToolExecutionTimeout)
	defer cancel()

	type outcome struct {
		res *ToolExecResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := t.Execute(cctx, args)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case <-cctx.Done():
		return inv.errorResult(call, newToolError(ToolErrTimeout, call.Name, call.ID, "execution timed out", cctx.Err()))
	case o := <-ch:
		if o.err != nil {
			kind := ToolErrExecution
			return inv.errorResult(call, newToolError(kind, call.Name, call.ID, o.err.Error(), o.err))
		}
		content := inv.ctxMgr.TruncateToolResult(o.res.Content)
		return DispatchResult{Call: call, Content: content, IsError: o.res.IsError, Status: models.ResultCompleted}
	}
}

func (inv *ToolInvoker) dispatchAgentTool(ctx context.Context, tenantID string, call models.ToolCall) DispatchResult {
	entry, ok := inv.catalog.registry.Get(call.Name)
	if !ok {
		return inv.errorResult(call, newToolError(ToolErrNotFound, call.Name, call.ID, "agent not registered", nil))
	}

	var raw map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &raw); err != nil {
			return inv.errorResult(call, newToolError(ToolErrBadShape, call.Name, call.ID, "arguments must be a JSON object", err))
		}
	}

	collected := seedAndValidate(entry.Spec, raw)
	taskInstruction, _ := raw["task_instruction"].(string)

	cctx, cancel := context.WithTimeout(ctx, inv.cfg.AgentToolExecutionTimeout)
	defer cancel()

	handler := entry.Factory()
	type outcome struct {
		res models.AgentResult
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{res: models.AgentResult{Status: models.AgentErrored, Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		ch <- outcome{res: handler.Step(cctx, collected, taskInstruction)}
	}()

	select {
	case <-cctx.Done():
		return inv.errorResult(call, newToolError(ToolErrTimeout, call.Name, call.ID, "agent tool execution timed out", cctx.Err()))
	case o := <-ch:
		return inv.handleAgentResult(ctx, tenantID, call, entry.Spec, collected, taskInstruction, o.res)
	}
}

// seedAndValidate copies only declared, non-task_instruction keys from raw
// into collected fields, dropping any value that does not match its declared
// type — such inputs are treated as missing, not silently accepted. Only the
// type is checked; a field's ValidatorHint is not evaluated here.
func seedAndValidate(spec models.AgentSpec, raw map[string]any) map[string]any {
	collected := make(map[string]any)
	for _, f := range spec.InputFields {
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		if !validFieldType(f.Type, v) {
			continue
		}
		collected[f.Name] = v
	}
	return collected
}

func validFieldType(t models.FieldType, v any) bool {
	switch t {
	case models.FieldString:
		_, ok := v.(string)
		return ok
	case models.FieldBool:
		_, ok := v.(bool)
		return ok
	case models.FieldInt, models.FieldFloat:
		switch v.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

func (inv *ToolInvoker) handleAgentResult(ctx context.Context, tenantID string, call models.ToolCall, spec models.AgentSpec, collected map[string]any, taskInstruction string, res models.AgentResult) DispatchResult {
	switch res.Status {
	case models.AgentCompleted:
		return DispatchResult{
			Call:    call,
			Content: inv.ctxMgr.TruncateToolResult(res.RawMessage),
			Status:  models.ResultCompleted,
		}

	case models.AgentWaiting:
		agentID := uuid.NewString()
		entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
			AgentID:         agentID,
			AgentType:       spec.Name,
			TenantID:        tenantID,
			Status:          models.StatusWaitingForInput,
			SchemaVersion:   spec.SchemaVersion,
			CollectedFields: collected,
			TaskInstruction: taskInstruction,
			CreatedAt:       time.Now(),
			TTLDeadline:     time.Now().Add(inv.cfg.approvalTimeout()),
		}}
		_ = inv.pool.Put(ctx, entry)
		return DispatchResult{
			Call:        call,
			Content:     res.Prompt,
			Status:      models.ResultWaitingForInput,
			ParkedAgent: &entry,
		}

	case models.AgentApproval:
		agentID := uuid.NewString()
		entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
			AgentID:         agentID,
			AgentType:       spec.Name,
			TenantID:        tenantID,
			Status:          models.StatusWaitingForApproval,
			SchemaVersion:   spec.SchemaVersion,
			CollectedFields: collected,
			TaskInstruction: taskInstruction,
			ApprovalPrompt:  res.ApprovalPrompt,
			CreatedAt:       time.Now(),
			TTLDeadline:     time.Now().Add(inv.cfg.approvalTimeout()),
		}}
		_ = inv.pool.Put(ctx, entry)
		req := models.ApprovalRequest{
			AgentID:        agentID,
			AgentName:      spec.Name,
			ActionSummary:  res.ApprovalPrompt,
			Options:        models.DefaultApprovalOptions(),
			TimeoutMinutes: inv.cfg.ApprovalTimeoutMinutes,
		}
		return DispatchResult{
			Call:            call,
			Content:         res.ApprovalPrompt,
			Status:          models.ResultWaitingApproval,
			ParkedAgent:     &entry,
			ApprovalRequest: &req,
		}

	default: // models.AgentErrored
		msg := "agent failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return inv.errorResult(call, newToolError(ToolErrExecution, call.Name, call.ID, msg, res.Err))
	}
}

func (inv *ToolInvoker) errorResult(call models.ToolCall, err *ToolError) DispatchResult {
	return DispatchResult{Call: call, Content: err.Error(), IsError: true, Status: models.ResultError}
}

func (c Config) approvalTimeout() time.Duration {
	return time.Duration(c.ApprovalTimeoutMinutes) * time.Minute
}
