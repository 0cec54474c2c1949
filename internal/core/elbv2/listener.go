package elbv2

import (
	"fmt"
	"math/rand"

	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/family"
)

// =============================================================================
// Priority Source
// =============================================================================

// priorityWindow bounds the base offset synthesized rules start from,
// leaving room below for user-managed rules.
const priorityWindow = 500

// PrioritySource draws the per-listener base offset for synthesized rule
// priorities. The generator is explicitly seeded, so a fixed seed makes
// every run byte-identical while still spreading listeners apart.
type PrioritySource struct {
	rng *rand.Rand
}

// NewPrioritySource returns a priority source for one synthesis run.
func NewPrioritySource(seed int64) *PrioritySource {
	return &PrioritySource{rng: rand.New(rand.NewSource(seed))}
}

// Offset returns a base offset in [0, priorityWindow).
func (s *PrioritySource) Offset() int {
	return s.rng.Intn(priorityWindow)
}

// =============================================================================
// Resolved Targets
// =============================================================================

// ResolvedTarget pairs a listener target declaration with the concrete
// endpoint it resolved to and the logical name of its target group.
type ResolvedTarget struct {
	Def         compose.ListenerTargetDef
	Endpoint    family.ExposedTarget
	TargetGroup string
}

// =============================================================================
// Listener Protocol
// =============================================================================

// effectiveProtocol determines the listener protocol, defaulting per load
// balancer type and upgrading plaintext protocols when certificates are
// attached.
func effectiveProtocol(lb compose.LoadBalancer, listener compose.Listener) (string, []string, error) {
	proto := listener.Protocol
	if proto == "" {
		if lb.IsNLB() {
			proto = "TCP"
		} else {
			proto = "HTTP"
		}
	}
	if len(listener.Certificates) == 0 {
		return proto, nil, nil
	}

	switch proto {
	case "HTTPS", "TLS":
		return proto, nil, nil
	case "HTTP":
		warning := fmt.Sprintf(
			"%s: listener %d has certificates but protocol HTTP. Upgrading to HTTPS",
			lb.Name, listener.Port,
		)
		return "HTTPS", []string{warning}, nil
	case "TCP":
		warning := fmt.Sprintf(
			"%s: listener %d has certificates but protocol TCP. Upgrading to TLS",
			lb.Name, listener.Port,
		)
		return "TLS", []string{warning}, nil
	default:
		return "", nil, fmt.Errorf("%s: listener %d: %w", lb.Name, listener.Port, ErrUDPCertificate)
	}
}

func isEncrypted(proto string) bool {
	return proto == "HTTPS" || proto == "TLS"
}

// =============================================================================
// Actions
// =============================================================================

// teaPotAction is the fallback default action when no target qualifies:
// a fixed 418 response, so misrouted traffic is visible instead of silently
// hitting an arbitrary target.
func teaPotAction() map[string]any {
	return map[string]any{
		"Type": "fixed-response",
		"FixedResponseConfig": map[string]any{
			"StatusCode":  "418",
			"ContentType": "text/plain",
			"MessageBody": "I'm a teapot",
		},
	}
}

func redirectToHTTPSAction() map[string]any {
	return map[string]any{
		"Type": "redirect",
		"RedirectConfig": map[string]any{
			"Protocol":   "HTTPS",
			"Port":       "443",
			"Host":       "#{host}",
			"Path":       "/#{path}",
			"Query":      "#{query}",
			"StatusCode": "HTTP_301",
		},
	}
}

func forwardAction(targetGroupArn any, order int) map[string]any {
	action := map[string]any{
		"Type":           "forward",
		"TargetGroupArn": targetGroupArn,
	}
	if order > 0 {
		action["Order"] = order
	}
	return action
}

// targetActions builds the action chain of one target: authentication steps
// first, with explicit execution order, then the forward action.
func targetActions(target ResolvedTarget, targetGroupArn any, proto string, hasCerts bool, lbName string, port int) ([]any, error) {
	def := target.Def
	if def.AuthenticateOidc == nil && def.AuthenticateCognito == nil {
		return []any{forwardAction(targetGroupArn, 0)}, nil
	}
	if !isEncrypted(proto) || !hasCerts {
		return nil, fmt.Errorf("%s: listener %d target %s: %w", lbName, port, def.Name, ErrAuthRequiresTLS)
	}

	var auth map[string]any
	if oidc := def.AuthenticateOidc; oidc != nil {
		config := map[string]any{
			"Issuer":                oidc.Issuer,
			"AuthorizationEndpoint": oidc.AuthorizationEndpoint,
			"TokenEndpoint":         oidc.TokenEndpoint,
			"UserInfoEndpoint":      oidc.UserInfoEndpoint,
			"ClientId":              oidc.ClientID,
			"ClientSecret":          oidc.ClientSecret,
		}
		if oidc.Scope != "" {
			config["Scope"] = oidc.Scope
		}
		if oidc.OnUnauthenticatedRequest != "" {
			config["OnUnauthenticatedRequest"] = oidc.OnUnauthenticatedRequest
		}
		auth = map[string]any{
			"Type":                   "authenticate-oidc",
			"Order":                  1,
			"AuthenticateOidcConfig": config,
		}
	} else {
		cognito := def.AuthenticateCognito
		config := map[string]any{
			"UserPoolArn":      cognito.UserPoolArn,
			"UserPoolClientId": cognito.UserPoolClientID,
			"UserPoolDomain":   cognito.UserPoolDomain,
		}
		if cognito.Scope != "" {
			config["Scope"] = cognito.Scope
		}
		if cognito.OnUnauthenticatedRequest != "" {
			config["OnUnauthenticatedRequest"] = cognito.OnUnauthenticatedRequest
		}
		auth = map[string]any{
			"Type":                      "authenticate-cognito",
			"Order":                     1,
			"AuthenticateCognitoConfig": config,
		}
	}
	return []any{auth, forwardAction(targetGroupArn, 2)}, nil
}

// =============================================================================
// Default Action Selection
// =============================================================================

// listenerPlan is the routing layout of one listener after precedence rules
// applied: the default action chain plus the targets that become
// conditional rules.
type listenerPlan struct {
	defaultActions []any
	ruleTargets    []ResolvedTarget
	warnings       []string
}

// planListener applies the default-action precedence:
//
//  1. Explicit default actions declared on the listener.
//  2. A single target with no access condition becomes the sole default.
//  3. Exactly one target with access "/" becomes default, the rest become
//     conditional rules.
//  4. Otherwise every target becomes a conditional rule and the default
//     falls back to a fixed 418 response.
func planListener(lb compose.LoadBalancer, listener compose.Listener, targets []ResolvedTarget, proto string, tgArn func(ResolvedTarget) any) (listenerPlan, error) {
	hasCerts := len(listener.Certificates) > 0

	if len(listener.DefaultActions) > 0 {
		actions, err := explicitDefaultActions(lb, listener)
		return listenerPlan{defaultActions: actions, ruleTargets: targets}, err
	}

	if len(targets) == 1 && targets[0].Def.Access == "" {
		actions, err := targetActions(targets[0], tgArn(targets[0]), proto, hasCerts, lb.Name, listener.Port)
		return listenerPlan{defaultActions: actions}, err
	}

	var root *ResolvedTarget
	rootCount := 0
	for i := range targets {
		if IsRootAccess(targets[i].Def.Access) {
			root = &targets[i]
			rootCount++
		}
	}
	if rootCount == 1 {
		var rules []ResolvedTarget
		for _, target := range targets {
			if target.Def.Name != root.Def.Name {
				rules = append(rules, target)
			}
		}
		actions, err := targetActions(*root, tgArn(*root), proto, hasCerts, lb.Name, listener.Port)
		return listenerPlan{defaultActions: actions, ruleTargets: rules}, err
	}

	plan := listenerPlan{
		defaultActions: []any{teaPotAction()},
		ruleTargets:    targets,
	}
	plan.warnings = append(plan.warnings, fmt.Sprintf(
		"%s: listener %d declares no default target. Unmatched requests get a fixed 418 response",
		lb.Name, listener.Port,
	))
	return plan, nil
}

func explicitDefaultActions(lb compose.LoadBalancer, listener compose.Listener) ([]any, error) {
	actions := make([]any, 0, len(listener.DefaultActions))
	for _, def := range listener.DefaultActions {
		switch def.Redirect {
		case "HTTP_TO_HTTPS":
			actions = append(actions, redirectToHTTPSAction())
		case "TEA_POT", "":
			actions = append(actions, teaPotAction())
		default:
			return nil, fmt.Errorf(
				"%s: listener %d: unknown default action redirect %q",
				lb.Name, listener.Port, def.Redirect,
			)
		}
	}
	return actions, nil
}
