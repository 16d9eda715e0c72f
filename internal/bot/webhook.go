package bot

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook принимает обновления от Telegram по HTTP.
type Webhook struct {
	bot    *RentBot
	echo   *echo.Echo
	secret string
}

func NewWebhook(bot *RentBot, path, secret string) *Webhook {
	w := &Webhook{bot: bot, echo: echo.New(), secret: secret}
	w.echo.HideBanner = true
	w.echo.HidePort = true
	w.echo.POST(path, w.handleUpdate)
	w.echo.GET("/healthz", health)
	return w
}

func (w *Webhook) Handler() http.Handler {
	return w.echo
}

func (w *Webhook) Start(addr string) error {
	return w.echo.Start(addr)
}

func (w *Webhook) Shutdown(ctx context.Context) error {
	return w.echo.Shutdown(ctx)
}

func health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (w *Webhook) handleUpdate(c echo.Context) error {
	if w.secret != "" && c.Request().Header.Get(secretHeader) != w.secret {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid secret token"})
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid update"})
	}
	w.bot.HandleUpdate(c.Request().Context(), update)
	return c.NoContent(http.StatusOK)
}
