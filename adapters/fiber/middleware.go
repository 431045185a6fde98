package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/shopfront/services"
)

// requireConsoleKey rejects requests that do not present the console key.
func (a *Adapter) requireConsoleKey(c fiber.Ctx) error {
	key := c.Get(HeaderConsoleKey)
	if key == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing console key",
		})
	}
	if a.verifier == nil || !a.verifier.VerifyConsoleKey(key) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid console key",
		})
	}
	return c.Next()
}

// locator maps a console request to the UI location it stands for.
type locator func(c fiber.Ctx) string

func at(location string) locator {
	return func(fiber.Ctx) string { return location }
}

// consoleLocation strips the console prefix: /api/admin/users -> /admin/users.
// The prefix is matched without regard to case, as the router does.
func consoleLocation(c fiber.Ctx) string {
	path := c.Path()
	if len(path) >= len(BasePath) && strings.EqualFold(path[:len(BasePath)], BasePath) {
		return path[len(BasePath):]
	}
	return path
}

func orderLocation(c fiber.Ctx) string {
	return "/orders/" + c.Params("id")
}

// guard applies the route guard to the location the request stands for.
func (a *Adapter) guard(locate locator) fiber.Handler {
	return func(c fiber.Ctx) error {
		decision := a.sf.Authorize(locate(c))

		switch decision.Kind {
		case services.DecisionAllow:
			return c.Next()

		case services.DecisionPending:
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "session is initializing",
			})

		case services.DecisionRedirect:
			if decision.Target == services.LoginPath {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"redirect": decision.Target,
					"from":     decision.From,
				})
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"redirect": decision.Target,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unknown guard decision",
		})
	}
}
