package handlers

import (
	"net/http"

	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateKey     = "oauth_state"
)

// NewGoogleOAuthConfig 未配置 client id/secret 时返回 nil
func NewGoogleOAuthConfig(clientID, clientSecret, siteURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  siteURL + "/api/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleUserInfo Google 用户信息结构
type GoogleUserInfo struct {
	services.GoogleProfile
	VerifiedEmail bool `json:"verified_email"`
}

// GoogleLogin 发起 Google OAuth 登录
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		Fail(c, http.StatusNotFound, "未启用 Google 登录")
		return
	}

	state, err := utils.RandToken(32)
	if err != nil {
		Error(c, err)
		return
	}

	// 将 state 存储到 session 中，用于验证回调
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		Error(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.google.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// GoogleCallback 处理 Google OAuth 回调
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		Fail(c, http.StatusNotFound, "未启用 Google 登录")
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if savedState == "" || c.Query("state") != savedState {
		Fail(c, http.StatusBadRequest, "无效的状态参数")
		return
	}

	code := c.Query("code")
	if code == "" {
		Fail(c, http.StatusBadRequest, "未获取到授权码")
		return
	}

	ctx := c.Request.Context()
	token, err := h.google.Exchange(ctx, code)
	if err != nil {
		Fail(c, http.StatusBadGateway, "获取访问令牌失败")
		return
	}

	resp, err := h.client.R().WithContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&GoogleUserInfo{}).
		Get(googleUserInfoURL)
	if err != nil || resp.IsError() {
		Fail(c, http.StatusBadGateway, "获取用户信息失败")
		return
	}
	info := resp.Result().(*GoogleUserInfo)

	if !info.VerifiedEmail {
		Fail(c, http.StatusBadRequest, "Google 邮箱未验证")
		return
	}

	user, err := h.users.GoogleLogin(ctx, info.GoogleProfile)
	if err != nil {
		Error(c, err)
		return
	}
	if !startSession(c, user.ID) {
		return
	}
	c.Redirect(http.StatusFound, "/")
}
