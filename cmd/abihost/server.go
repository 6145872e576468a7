package main

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/metrics"
	"github.com/govm-net/abihost/types"
	"github.com/govm-net/abihost/vm"
)

// deployBody deploys a native program by name or hex-encoded wasm code. A nil
// Init skips the constructor.
type deployBody struct {
	Creator core.Address `json:"creator"`
	Program string       `json:"program"`
	Code    string       `json:"code"`
	Init    []string     `json:"init"`
}

type callBody struct {
	Caller     core.Address `json:"caller"`
	EntryPoint string       `json:"entry_point"`
	Args       []string     `json:"args"`
}

type fundBody struct {
	Amount uint64 `json:"amount"`
}

type heightBody struct {
	Height uint64 `json:"height"`
}

type apiHandlers struct {
	engine *vm.Engine
	logger *zap.Logger
}

// newRouter builds the JSON API over engine.
func newRouter(engine *vm.Engine, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := &apiHandlers{engine: engine, logger: logger}
	v1 := r.Group("/api/v1")

	contracts := v1.Group("/contracts")
	contracts.GET("", h.listContracts)
	contracts.POST("", h.deploy)
	contracts.GET("/:address", h.contract)
	contracts.GET("/:address/events", h.events)
	contracts.POST("/:address/invoke", h.invoke)
	contracts.POST("/:address/query", h.query)

	accounts := v1.Group("/accounts")
	accounts.GET("/:address/balance", h.balance)
	accounts.POST("/:address/fund", h.fund)

	chain := v1.Group("/chain")
	chain.GET("/height", h.height)
	chain.POST("/height", h.advance)

	admin := v1.Group("/admin")
	admin.POST("/pause", h.pause)
	admin.POST("/resume", h.resume)
	return r
}

// newMetricsRouter serves m on /metrics.
func newMetricsRouter(m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownContract):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPaused), errors.Is(err, core.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrContractExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAddress),
		errors.Is(err, core.ErrUnknownProgram),
		errors.Is(err, core.ErrHeightRegression):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInitFailed), core.IsFatal(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func addressParam(c *gin.Context) (core.Address, bool) {
	addr, err := core.ParseAddress(c.Param("address"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return addr, false
	}
	return addr, true
}

func parseArgs(in []string) ([]types.Arg, error) {
	out := make([]types.Arg, 0, len(in))
	for _, s := range in {
		arg, err := types.ParseArg(s)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func (h *apiHandlers) listContracts(c *gin.Context) {
	contracts, err := h.engine.Contracts()
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

func (h *apiHandlers) deploy(c *gin.Context) {
	var body deployBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	req := types.DeployRequest{Creator: body.Creator}
	switch {
	case body.Program != "" && body.Code != "":
		fail(c, http.StatusBadRequest, errors.New("program and code are mutually exclusive"))
		return
	case body.Program != "":
		req.Kind = types.KindNative
		req.Program = body.Program
	case body.Code != "":
		code, err := hex.DecodeString(strings.TrimPrefix(body.Code, "0x"))
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		req.Kind = types.KindWasm
		req.Code = code
	default:
		fail(c, http.StatusBadRequest, errors.New("one of program or code is required"))
		return
	}
	if body.Init != nil {
		args, err := parseArgs(body.Init)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		req.InitArgs = args
	}

	addr, err := h.engine.Deploy(c.Request.Context(), req)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError && req.Kind == types.KindWasm {
			// compile and import validation failures
			status = http.StatusUnprocessableEntity
		}
		fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr})
}

func (h *apiHandlers) contract(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	info, err := h.engine.Contract(addr)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	entries, err := h.engine.EntryPoints(c.Request.Context(), addr)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	bal, err := h.engine.Balance(addr)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contract":     info,
		"entry_points": entries,
		"balance":      bal,
		"phase":        h.engine.Phase(addr),
	})
}

func (h *apiHandlers) events(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	events, err := h.engine.Events(addr)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *apiHandlers) invoke(c *gin.Context) {
	h.call(c, true)
}

func (h *apiHandlers) query(c *gin.Context) {
	h.call(c, false)
}

func (h *apiHandlers) call(c *gin.Context, commit bool) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	var body callBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	args, err := parseArgs(body.Args)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	call := types.Call{Contract: addr, Caller: body.Caller, EntryPoint: body.EntryPoint, Args: args}
	var res *types.Result
	if commit {
		res, err = h.engine.Invoke(c.Request.Context(), call)
	} else {
		res, err = h.engine.Query(c.Request.Context(), call)
	}
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error(), "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *apiHandlers) balance(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	bal, err := h.engine.Balance(addr)
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": bal})
}

func (h *apiHandlers) fund(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	var body fundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := h.engine.Fund(addr, body.Amount); err != nil {
		status := statusOf(err)
		if errors.Is(err, core.ErrArithmeticOverflow) {
			status = http.StatusBadRequest
		}
		fail(c, status, err)
		return
	}
	h.balance(c)
}

func (h *apiHandlers) height(c *gin.Context) {
	height, err := h.engine.BlockHeight()
	if err != nil {
		fail(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height})
}

func (h *apiHandlers) advance(c *gin.Context) {
	var body heightBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := h.engine.AdvanceBlock(body.Height); err != nil {
		fail(c, statusOf(err), err)
		return
	}
	h.height(c)
}

func (h *apiHandlers) pause(c *gin.Context) {
	h.engine.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *apiHandlers) resume(c *gin.Context) {
	h.engine.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}
