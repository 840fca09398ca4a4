package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/freshmart/pkg/cart"
	rpc "github.com/example/freshmart/pkg/grpc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const cartCookieMaxAge = 14 * 24 * 60 * 60

type addItemBody struct {
	SKUID int64 `json:"sku_id"`
	Count int   `json:"count"`
}

type updateItemBody struct {
	Count int `json:"count"`
}

func (g *Gateway) getCart(c *gin.Context) {
	resp, err := g.carts.GetCart(c.Request.Context(), g.cartRequest(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	g.writeCart(c, resp)
	c.JSON(http.StatusOK, resp.View)
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var body addItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "MissingParameter", "sku_id and count are required")
		return
	}

	req := g.cartRequest(c)
	req.SKUID, req.Count = body.SKUID, body.Count
	resp, err := g.carts.AddItem(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.writeCart(c, resp)
	c.JSON(http.StatusOK, gin.H{"total_count": resp.TotalCount})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	skuID, ok := skuParam(c)
	if !ok {
		return
	}
	var body updateItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "MissingParameter", "count is required")
		return
	}

	req := g.cartRequest(c)
	req.SKUID, req.Count = skuID, body.Count
	resp, err := g.carts.UpdateItem(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.writeCart(c, resp)
	c.JSON(http.StatusOK, gin.H{"total_count": resp.TotalCount})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	skuID, ok := skuParam(c)
	if !ok {
		return
	}

	req := g.cartRequest(c)
	req.SKUID = skuID
	resp, err := g.carts.RemoveItem(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.writeCart(c, resp)
	c.JSON(http.StatusOK, gin.H{"total_count": resp.TotalCount})
}

// mergeCart moves the anonymous cookie cart into the signed-in user's cart
// and drops the cookie.
func (g *Gateway) mergeCart(c *gin.Context) {
	resp, err := g.carts.MergeCart(c.Request.Context(), &rpc.CartRequest{
		UserID: userID(c),
		Cart:   g.cookieCart(c),
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.SetCookie(g.cookieName(), "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"total_count": resp.TotalCount})
}

func (g *Gateway) cartRequest(c *gin.Context) *rpc.CartRequest {
	if uid := userID(c); uid > 0 {
		return &rpc.CartRequest{UserID: uid}
	}
	return &rpc.CartRequest{Cart: g.cookieCart(c)}
}

func (g *Gateway) cookieCart(c *gin.Context) map[int64]int {
	raw, err := c.Cookie(g.cookieName())
	if err != nil {
		return map[int64]int{}
	}
	entries, err := cart.DecodeCookie(raw)
	if err != nil {
		g.logger.Warn("Discarding malformed cart cookie", zap.Error(err))
		return map[int64]int{}
	}
	return entries
}

// writeCart stores the anonymous cart returned by the cart service back in
// the cookie. Signed-in users have no cookie cart.
func (g *Gateway) writeCart(c *gin.Context, resp *rpc.CartResponse) {
	if userID(c) > 0 {
		return
	}
	raw, err := cart.EncodeCookie(resp.Cart)
	if err != nil {
		g.logger.Error("Failed to encode cart cookie", zap.Error(err))
		return
	}
	c.SetCookie(g.cookieName(), raw, cartCookieMaxAge, "/", "", false, true)
}

func (g *Gateway) cookieName() string {
	if g.config.Gateway.CartCookie != "" {
		return g.config.Gateway.CartCookie
	}
	return "cart"
}

func skuParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("sku_id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "MissingParameter", "sku_id must be a positive integer")
		return 0, false
	}
	return id, true
}
