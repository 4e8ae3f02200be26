package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/preroll"
	"github.com/kbukum/voicememo/prompt"
	"github.com/kbukum/voicememo/recording"
)

// UsageFunc returns the current usage snapshot for prompt evaluation.
type UsageFunc func(ctx context.Context) (prompt.Usage, error)

// ReprocessFunc queues a pipeline run over a saved recording.
type ReprocessFunc func(ctx context.Context, h recording.Handle) error

// API binds the control routes to the core services. Every field except
// Reprocess is required; without it the reprocess route is not mounted.
type API struct {
	Entitlements *entitlement.Service
	Prompts      *prompt.Engine
	Usage        UsageFunc
	Preroll      *preroll.Buffer
	Recordings   recording.Store
	Reprocess    ReprocessFunc
	Now          func() time.Time
}

// EntitlementView is the body of GET /v1/entitlements.
type EntitlementView struct {
	Tier             entitlement.Tier                `json:"tier"`
	Since            *time.Time                      `json:"since,omitempty"`
	MonthsSubscribed int                             `json:"months_subscribed"`
	Capabilities     map[entitlement.Capability]bool `json:"capabilities"`
}

// UpgradeRequest is the body of POST /v1/entitlements/upgrade.
type UpgradeRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// PromptDecision is the body of POST /v1/prompts/:kind/evaluate.
type PromptDecision struct {
	Kind   prompt.Kind      `json:"kind"`
	Tier   entitlement.Tier `json:"tier"`
	Show   bool             `json:"show"`
	Target entitlement.Tier `json:"target"`
}

// PromptsView is the body of GET /v1/prompts.
type PromptsView struct {
	Usage    prompt.Usage                        `json:"usage"`
	Counters map[prompt.Kind]prompt.CounterState `json:"counters"`
}

// ArmRequest is the body of POST /v1/preroll/arm.
type ArmRequest struct {
	WindowSeconds *int `json:"window_seconds" binding:"required"`
}

// Register mounts the /v1 routes on s.
func (a *API) Register(s *Server) {
	if a.Now == nil {
		a.Now = time.Now
	}
	v1 := s.Engine().Group("/v1")

	v1.GET("/entitlements", a.getEntitlements)
	v1.POST("/entitlements/upgrade", a.upgrade)

	v1.GET("/prompts", a.listPrompts)
	v1.POST("/prompts/:kind/evaluate", a.evaluatePrompt)

	v1.GET("/preroll", a.prerollStatus)
	v1.POST("/preroll/arm", a.arm)
	v1.POST("/preroll/disarm", a.disarm)

	v1.GET("/recordings/:handle", a.getRecording)
	if a.Reprocess != nil {
		v1.POST("/recordings/:handle/reprocess", a.reprocess)
	}
}

func (a *API) entitlementView() EntitlementView {
	st := a.Entitlements.State()
	caps := a.Entitlements.Capabilities()
	v := EntitlementView{
		Tier:             st.Tier,
		MonthsSubscribed: a.Entitlements.MonthsSubscribed(a.Now()),
		Capabilities:     make(map[entitlement.Capability]bool, len(entitlement.AllCapabilities())),
	}
	if !st.Since.IsZero() {
		since := st.Since
		v.Since = &since
	}
	for _, c := range entitlement.AllCapabilities() {
		v.Capabilities[c] = caps.Has(c)
	}
	return v
}

func (a *API) getEntitlements(c *gin.Context) {
	RespondOK(c, a.entitlementView())
}

func (a *API) upgrade(c *gin.Context) {
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("tier", err.Error()))
		return
	}
	tier, err := entitlement.ParseTier(req.Tier)
	if err != nil {
		RespondWithError(c, errors.InvalidInput("tier", err.Error()))
		return
	}
	if err := a.Entitlements.Upgrade(c.Request.Context(), tier); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, a.entitlementView())
}

func (a *API) listPrompts(c *gin.Context) {
	usage, err := a.Usage(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, PromptsView{Usage: usage, Counters: a.Prompts.Counters()})
}

func (a *API) evaluatePrompt(c *gin.Context) {
	kind, err := prompt.ParseKind(c.Param("kind"))
	if err != nil {
		RespondWithError(c, errors.NotFound("prompt", c.Param("kind")))
		return
	}
	usage, err := a.Usage(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	tier := a.Entitlements.Tier()
	show, err := a.Prompts.Evaluate(c.Request.Context(), kind, tier, usage)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, PromptDecision{Kind: kind, Tier: tier, Show: show, Target: kind.Target()})
}

func (a *API) prerollStatus(c *gin.Context) {
	RespondOK(c, a.Preroll.Status())
}

func (a *API) arm(c *gin.Context) {
	var req ArmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("window_seconds", err.Error()))
		return
	}
	if err := a.Preroll.Arm(*req.WindowSeconds); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, a.Preroll.Status())
}

func (a *API) disarm(c *gin.Context) {
	a.Preroll.Disarm()
	RespondOK(c, a.Preroll.Status())
}

func (a *API) getRecording(c *gin.Context) {
	rec, err := a.Recordings.Get(c.Request.Context(), recording.Handle(c.Param("handle")))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, rec)
}

// ReprocessView is the body of POST /v1/recordings/:handle/reprocess.
type ReprocessView struct {
	Handle recording.Handle `json:"handle"`
	Status string           `json:"status"`
}

func (a *API) reprocess(c *gin.Context) {
	h := recording.Handle(c.Param("handle"))
	if err := a.Reprocess(c.Request.Context(), h); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, DataResponse{Data: ReprocessView{Handle: h, Status: "queued"}})
}
