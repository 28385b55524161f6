package server

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"LexGate/internal/conf"
	"LexGate/internal/model"
	"LexGate/internal/server/middleware"
	"LexGate/internal/service"
)

// maxWebhookBody caps inbound notification payloads.
const maxWebhookBody = 1 << 20

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	auth *conf.Auth,
	dispatchSvc *service.DispatchService,
	workflowSvc *service.WorkflowService,
	adminSvc *service.AdminService,
	webhookSvc *service.WebhookService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logger),
			middleware.Auth(auth, logger),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != nil {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, dispatchSvc, workflowSvc, adminSvc, webhookSvc)

	return srv
}

func registerRoutes(
	srv *http.Server,
	dispatchSvc *service.DispatchService,
	workflowSvc *service.WorkflowService,
	adminSvc *service.AdminService,
	webhookSvc *service.WebhookService,
) {
	r := srv.Route("/")

	r.GET("/healthz", func(ctx http.Context) error {
		return ctx.JSON(200, map[string]string{"status": "ok"})
	})

	r.POST("/v1/dispatch", func(ctx http.Context) error {
		var in model.IntegrationRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, "/v1/dispatch")
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return dispatchSvc.Dispatch(c, req.(*model.IntegrationRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/v1/workflows/execute", func(ctx http.Context) error {
		var in model.WorkflowDefinition
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, "/v1/workflows/execute")
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return workflowSvc.ExecuteWorkflow(c, req.(*model.WorkflowDefinition))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/v1/workflows/executions", func(ctx http.Context) error {
		limit, _ := strconv.Atoi(ctx.Query().Get("limit"))
		http.SetOperation(ctx, "/v1/workflows/executions")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return workflowSvc.ListExecutions(c, limit)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/v1/workflows/executions/{id}", func(ctx http.Context) error {
		id := ctx.Vars().Get("id")
		http.SetOperation(ctx, "/v1/workflows/executions/get")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return workflowSvc.GetExecution(c, id)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/v1/admin/circuits", func(ctx http.Context) error {
		http.SetOperation(ctx, "/v1/admin/circuits")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return adminSvc.ListCircuitStates(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/v1/admin/circuits/{service}", func(ctx http.Context) error {
		svcName := ctx.Vars().Get("service")
		http.SetOperation(ctx, "/v1/admin/circuits/get")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return adminSvc.GetCircuitState(c, svcName)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/v1/admin/circuits/{service}/reset", func(ctx http.Context) error {
		svcName := ctx.Vars().Get("service")
		http.SetOperation(ctx, "/v1/admin/circuits/reset")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return nil, adminSvc.ResetCircuit(c, svcName)
		})
		if _, err := h(ctx, nil); err != nil {
			return err
		}
		return ctx.JSON(200, map[string]string{"service": svcName, "state": string(model.CircuitClosed)})
	})

	r.GET("/v1/admin/rate-limits/{service}", func(ctx http.Context) error {
		svcName := ctx.Vars().Get("service")
		identifier := ctx.Query().Get("identifier")
		http.SetOperation(ctx, "/v1/admin/rate-limits/get")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return adminSvc.GetRateUsage(c, svcName, identifier)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/v1/admin/rate-limits/{service}/reset", func(ctx http.Context) error {
		svcName := ctx.Vars().Get("service")
		identifier := ctx.Query().Get("identifier")
		http.SetOperation(ctx, "/v1/admin/rate-limits/reset")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return nil, adminSvc.ResetRateWindow(c, svcName, identifier)
		})
		if _, err := h(ctx, nil); err != nil {
			return err
		}
		return ctx.JSON(200, map[string]string{"service": svcName, "status": "reset"})
	})

	// Webhook endpoints reply in each provider's acknowledgement format,
	// not JSON, so the handlers write the body directly.
	r.POST("/webhooks/alipay", func(ctx http.Context) error {
		httpReq := ctx.Request()
		httpReq.Body = io.NopCloser(io.LimitReader(httpReq.Body, maxWebhookBody))
		if err := httpReq.ParseForm(); err != nil {
			return ctx.Blob(400, "text/plain; charset=utf-8", []byte("failure"))
		}
		params := make(map[string]string, len(httpReq.PostForm))
		for key := range httpReq.PostForm {
			params[key] = httpReq.PostForm.Get(key)
		}

		http.SetOperation(ctx, "/webhooks/alipay")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return webhookSvc.HandleAlipay(c, params), nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Blob(200, "text/plain; charset=utf-8", []byte(out.(string)))
	})

	r.POST("/webhooks/wechat", func(ctx http.Context) error {
		body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
		if err != nil {
			return err
		}
		params, err := parseFlatXML(body)
		if err != nil {
			return ctx.Blob(400, "text/xml; charset=utf-8",
				[]byte("<xml><return_code><![CDATA[FAIL]]></return_code><return_msg><![CDATA[malformed xml]]></return_msg></xml>"))
		}

		http.SetOperation(ctx, "/webhooks/wechat")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return webhookSvc.HandleWechat(c, params), nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Blob(200, "text/xml; charset=utf-8", []byte(out.(string)))
	})
}

// parseFlatXML decodes a WeChat Pay notification: a single <xml> root
// with flat child elements, each holding one text or CDATA value.
func parseFlatXML(body []byte) (map[string]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	params := make(map[string]string)

	var current string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local != "xml" {
				current = t.Name.Local
			}
		case xml.CharData:
			if current != "" {
				params[current] += string(t)
			}
		case xml.EndElement:
			current = ""
		}
	}
	return params, nil
}
