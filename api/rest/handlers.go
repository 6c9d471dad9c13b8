package rest

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/internal/parser"
	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/internal/resolver"
	"testops/testplan-engine/pkg/types"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// createTestPlan handles POST /api/v1/testplans
func (s *Server) createTestPlan(c *fiber.Ctx) error {
	var req CreatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}

	if req.Template == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "'template' must be provided",
		})
	}

	tmpl, err := parser.Parse([]byte(req.Template))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_template",
			Message: "Failed to parse template: " + err.Error(),
		})
	}

	var props map[string]types.Value
	if len(req.Properties) > 0 {
		props = make(map[string]types.Value, len(req.Properties))
		for k, v := range req.Properties {
			value, err := types.FromAny(v)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
					Error:   "invalid_request",
					Message: "Invalid property '" + k + "': " + err.Error(),
				})
			}
			props[k] = value
		}
	}

	plan := parser.Instantiate(tmpl, req.ID, req.SystemID, props)

	controller, err := lifecycle.NewController(plan, s.sched)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_template",
			Message: "Failed to configure lifecycle: " + err.Error(),
		})
	}
	if !s.register(controller) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "already_exists",
			Message: "Test plan '" + plan.ID + "' already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(planResponse(controller, false))
}

// listTestPlans handles GET /api/v1/testplans
func (s *Server) listTestPlans(c *fiber.Ctx) error {
	s.mu.RLock()
	controllers := make([]*lifecycle.Controller, 0, len(s.plans))
	for _, controller := range s.plans {
		controllers = append(controllers, controller)
	}
	s.mu.RUnlock()

	resp := PlanListResponse{Plans: make([]PlanResponse, 0, len(controllers))}
	for _, controller := range controllers {
		resp.Plans = append(resp.Plans, planResponse(controller, false))
	}
	resp.Total = len(resp.Plans)
	return c.JSON(resp)
}

// getTestPlan handles GET /api/v1/testplans/:id
func (s *Server) getTestPlan(c *fiber.Ctx) error {
	controller, ok := s.lookup(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Test plan not found: " + c.Params("id"),
		})
	}
	return c.JSON(planResponse(controller, true))
}

// fireTransition handles POST /api/v1/testplans/:id/transitions/:name
func (s *Server) fireTransition(c *fiber.Ctx) error {
	controller, ok := s.lookup(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Test plan not found: " + c.Params("id"),
		})
	}

	rec, err := controller.Fire(c.UserContext(), lifecycle.Transition(c.Params("name")))
	if err != nil && rec == nil {
		return transitionError(c, err)
	}

	// A runtime action failure still completes the transition; the record
	// carries the failure.
	return c.JSON(TransitionResponse{
		ID:     controller.Plan().ID,
		Record: *rec,
	})
}

// getMetrics handles GET /api/v1/metrics
func (s *Server) getMetrics(c *fiber.Ctx) error {
	return c.JSON(MetricsResponse{
		Series: s.sched.Recorder().SnapshotAll(),
	})
}

// transitionError maps a rejected firing to a status code.
func transitionError(c *fiber.Ctx, err error) error {
	switch {
	case lifecycle.IsUnknownTransition(err):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "unknown_transition",
			Message: err.Error(),
		})
	case lifecycle.IsIllegalTransition(err):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "illegal_transition",
			Message: err.Error(),
		})
	case lifecycle.IsInFlight(err):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "transition_in_flight",
			Message: err.Error(),
		})
	}

	var resErr *resolver.ResolutionError
	if errors.As(err, &resErr) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "resolution_failed",
			Message: err.Error(),
		})
	}
	var argErr *request.MalformedArgumentsError
	if errors.As(err, &argErr) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "malformed_arguments",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "transition_failed",
		Message: err.Error(),
	})
}

// planResponse builds the API shape of a controller's current state.
func planResponse(controller *lifecycle.Controller, withHistory bool) PlanResponse {
	plan := controller.Plan()

	resp := PlanResponse{
		ID:       plan.ID,
		Name:     plan.Name,
		SystemID: plan.SystemID,
		Phase:    controller.Phase(),
	}
	for _, t := range controller.Available() {
		resp.Transitions = append(resp.Transitions, string(t))
	}
	if withHistory {
		resp.History = controller.History()
	}
	return resp
}
