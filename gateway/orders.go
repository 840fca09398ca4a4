package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/freshmart/pkg/checkout"
	"github.com/example/freshmart/pkg/failure"
	rpc "github.com/example/freshmart/pkg/grpc"
	"github.com/example/freshmart/pkg/models"
	"github.com/gin-gonic/gin"
)

type previewBody struct {
	SKUIDs []int64 `json:"sku_ids"`
	Count  int     `json:"count"`
}

type placeOrderBody struct {
	AddressID int64            `json:"address_id"`
	PayMethod models.PayMethod `json:"pay_method"`
	SKUIDs    []int64          `json:"sku_ids"`
}

type reviewBody struct {
	Reviews []checkout.LineReview `json:"reviews"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (g *Gateway) previewOrder(c *gin.Context) {
	var body previewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, string(failure.MissingParameter), "sku_ids are required")
		return
	}

	preview, err := g.orders.PreviewOrder(c.Request.Context(), &rpc.PreviewOrderRequest{
		UserID: userID(c),
		SKUIDs: body.SKUIDs,
		Count:  body.Count,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (g *Gateway) placeOrder(c *gin.Context) {
	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, string(failure.MissingParameter), "address_id, pay_method and sku_ids are required")
		return
	}

	placed, err := g.orders.PlaceOrder(c.Request.Context(), &rpc.PlaceOrderRequest{
		UserID:    userID(c),
		AddressID: body.AddressID,
		PayMethod: body.PayMethod,
		SKUIDs:    body.SKUIDs,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, placed)
}

func (g *Gateway) listOrders(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}

	orders, err := g.orders.ListOrders(c.Request.Context(), userID(c), page)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.orders.GetOrder(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) paymentURL(c *gin.Context) {
	url, err := g.orders.PaymentURL(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pay_url": url})
}

func (g *Gateway) confirmPayment(c *gin.Context) {
	res, err := g.orders.ConfirmPayment(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (g *Gateway) submitReview(c *gin.Context) {
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, string(failure.MissingParameter), "reviews are required")
		return
	}

	orderID := c.Param("id")
	err := g.orders.SubmitReview(c.Request.Context(), &rpc.SubmitReviewRequest{
		UserID:  userID(c),
		OrderID: orderID,
		Reviews: body.Reviews,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.StatusComplete.String()})
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, string(failure.MissingParameter), "status is required")
		return
	}
	status, ok := models.ParseOrderStatus(body.Status)
	if !ok {
		abortWithError(c, http.StatusBadRequest, string(failure.InvalidOrderStatus), "unknown status "+strconv.Quote(body.Status))
		return
	}

	order, err := g.orders.UpdateOrderStatus(c.Request.Context(), userID(c), c.Param("id"), status)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
