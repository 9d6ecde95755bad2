package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"matka-service/internal/middleware"
	"matka-service/internal/service"
	authSvc "matka-service/internal/service/auth"
	betSvc "matka-service/internal/service/bet"
	paymentSvc "matka-service/internal/service/payment"
	settleSvc "matka-service/internal/service/settle"
	userSvc "matka-service/internal/service/user"
	walletSvc "matka-service/internal/service/wallet"
	"matka-service/internal/ws"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container, hub *ws.Hub) {
	handler := &Handler{services: services}

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		v1.GET("/games", handler.ListGames)
		v1.GET("/results", handler.ListResults)

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.PUT("/profile", handler.UpdateProfile)
			userGroup.GET("/referrals", handler.MyReferrals)
			userGroup.GET("/wallet", handler.GetWallet)
			userGroup.GET("/transactions", handler.MyTransactions)
		}

		betGroup := v1.Group("/bets")
		betGroup.Use(middleware.AuthRequired())
		{
			betGroup.POST("", handler.PlaceBet)
			betGroup.GET("/current", handler.CurrentSessionBets)
			betGroup.GET("/history", handler.BetHistory)
		}

		depositGroup := v1.Group("/deposits")
		depositGroup.Use(middleware.AuthRequired())
		{
			depositGroup.POST("", handler.RequestDeposit)
			depositGroup.GET("", handler.MyDeposits)
		}

		withdrawGroup := v1.Group("/withdrawals")
		withdrawGroup.Use(middleware.AuthRequired())
		{
			withdrawGroup.POST("", handler.RequestWithdraw)
			withdrawGroup.GET("", handler.MyWithdrawals)
		}
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired())
		{
			protected.GET("/users", handler.AdminListUsers)
			protected.GET("/users/:id", handler.AdminGetUser)
			protected.PUT("/users/:id/status", handler.AdminSetUserStatus)
			protected.PUT("/users/:id/wallet", handler.AdminSetUserWallet)
			protected.GET("/users/:id/audit", handler.AdminWalletAudit)

			protected.POST("/users/:id/backup", handler.AdminBackupUser)
			protected.GET("/users/:id/backup", handler.AdminGetBackup)
			protected.POST("/users/:id/reset", handler.AdminResetUser)
			protected.POST("/users/:id/restore", handler.AdminRestoreUser)

			protected.GET("/deposits", handler.AdminListDeposits)
			protected.PUT("/deposits/:id/approve", handler.AdminApproveDeposit)
			protected.PUT("/deposits/:id/reject", handler.AdminRejectDeposit)

			protected.GET("/withdrawals", handler.AdminListWithdrawals)
			protected.PUT("/withdrawals/:id/approve", handler.AdminApproveWithdraw)
			protected.PUT("/withdrawals/:id/reject", handler.AdminRejectWithdraw)

			protected.GET("/transactions", handler.AdminListTransactions)

			protected.POST("/results/declare", handler.AdminDeclareResult)
			protected.POST("/results/undo", handler.AdminUndoResult)
			protected.GET("/games/:name/records", handler.AdminSessionRecords)
		}
	}

	r.GET("/ws/results", hub.HandleResultsWS)
}

type registerBody struct {
	Username     string `json:"username" binding:"required"`
	Mobile       string `json:"mobile" binding:"required"`
	Email        string `json:"email"`
	Password     string `json:"password" binding:"required,min=6"`
	ReferralCode string `json:"referralCode"`
}

type loginBody struct {
	Mobile   string `json:"mobile" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileBody struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type placeBetBody struct {
	Game    string          `json:"game" binding:"required"`
	BetType string          `json:"betType" binding:"required"`
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

type depositBody struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	UTRNumber     string          `json:"utrNumber" binding:"required"`
	PaymentMethod string          `json:"paymentMethod"`
}

type withdrawBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type rejectBody struct {
	Note string `json:"note"`
}

type userStatusBody struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type adminSetWalletBody struct {
	Balance  decimal.Decimal `json:"balance"`
	Bonus    decimal.Decimal `json:"bonus"`
	Winnings decimal.Decimal `json:"winnings"`
	Reason   string          `json:"reason" binding:"required"`
}

type declareResultBody struct {
	Game          string `json:"game" binding:"required"`
	WinningNumber string `json:"winningNumber" binding:"required"`
}

type undoResultBody struct {
	Game string `json:"game" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), authSvc.RegisterRequest{
		Username:     body.Username,
		Mobile:       body.Mobile,
		Email:        body.Email,
		Password:     body.Password,
		ReferralCode: body.ReferralCode,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrUsernameTaken), errors.Is(err, appErr.ErrMobileTaken):
			status = http.StatusConflict
		case errors.Is(err, appErr.ErrReferralCodeNotFound), errors.Is(err, appErr.ErrInvalidCredentials):
			status = http.StatusBadRequest
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"referralCode": user.ReferralCode,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), body.Mobile, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrInvalidCredentials):
			status = http.StatusUnauthorized
		case errors.Is(err, appErr.ErrUserBlocked):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrAdminNotFound), errors.Is(err, appErr.ErrInvalidAdminPassword):
			status = http.StatusUnauthorized
		case errors.Is(err, appErr.ErrAdminDisabled):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) ListGames(c *gin.Context) {
	response.Success(c, gin.H{"games": h.services.Timing.AllStatuses(time.Now())})
}

func (h *Handler) ListResults(c *gin.Context) {
	days, err := parsePositiveIntQuery(c, "days", 7)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	since := time.Now().AddDate(0, 0, -days)

	results, err := h.services.Settle.History(c.Request.Context(), since)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"results": results})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.services.User.UpdateProfile(c.Request.Context(), userID, userSvc.UpdateProfileRequest{
		Username: body.Username,
		Email:    body.Email,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, updated)
}

func (h *Handler) MyReferrals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := h.services.User.MyReferrals(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, summary)
}

func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.services.Wallet.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"wallet": wallet, "total": wallet.Total()})
}

func (h *Handler) MyTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	txns, err := h.services.Payment.Transactions(c.Request.Context(), &userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"transactions": txns})
}

func (h *Handler) PlaceBet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body placeBetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Bet.Place(c.Request.Context(), betSvc.PlaceRequest{
		UserID:  userID,
		Game:    body.Game,
		BetType: strings.ToLower(strings.TrimSpace(body.BetType)),
		Number:  body.Number,
		Amount:  body.Amount,
		Now:     time.Now(),
	})
	if err != nil {
		h.handleBetError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) CurrentSessionBets(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bets, err := h.services.Bet.CurrentSession(c.Request.Context(), userID, time.Now())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"bets": bets})
}

func (h *Handler) BetHistory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	days, err := parsePositiveIntQuery(c, "days", 30)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	bets, err := h.services.Bet.History(c.Request.Context(), userID, time.Now().AddDate(0, 0, -days))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"bets": bets})
}

func (h *Handler) RequestDeposit(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	deposit, err := h.services.Payment.RequestDeposit(c.Request.Context(), paymentSvc.DepositRequestInput{
		UserID:        userID,
		Amount:        body.Amount,
		UTRNumber:     body.UTRNumber,
		PaymentMethod: body.PaymentMethod,
		Now:           time.Now(),
	})
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"id": deposit.ID, "status": deposit.Status})
}

func (h *Handler) MyDeposits(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	deposits, err := h.services.Payment.ListDeposits(c.Request.Context(), &userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"deposits": deposits})
}

func (h *Handler) RequestWithdraw(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	withdraw, err := h.services.Payment.RequestWithdraw(c.Request.Context(), userID, body.Amount, time.Now())
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"id": withdraw.ID, "status": withdraw.Status})
}

func (h *Handler) MyWithdrawals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	withdrawals, err := h.services.Payment.ListWithdrawals(c.Request.Context(), &userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"withdrawals": withdrawals})
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && status != "active" && status != "blocked" {
		response.Error(c, http.StatusBadRequest, "invalid status filter")
		return
	}

	result, err := h.services.User.AdminListUsers(c.Request.Context(), userSvc.AdminListUsersFilter{
		Page:          page,
		Size:          size,
		Status:        status,
		MobileKeyword: strings.TrimSpace(c.Query("mobile")),
		ReferralCode:  strings.TrimSpace(c.Query("referralCode")),
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	stats, err := h.services.User.AdminGetUser(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, stats)
}

func (h *Handler) AdminSetUserStatus(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var body userStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.services.User.AdminUpdateUserStatus(c.Request.Context(), userID, body.Status, body.Reason)
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrUserNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(err, appErr.ErrInvalidUserStatus):
			statusCode = http.StatusBadRequest
		}
		response.Error(c, statusCode, err.Error())
		return
	}
	response.Success(c, gin.H{"user": updated})
}

func (h *Handler) AdminSetUserWallet(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var body adminSetWalletBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	adminID, _ := getAdminID(c)
	wallet, err := h.services.Wallet.AdminAdjust(c.Request.Context(), userID, walletSvc.AdjustRequest{
		Balance:  body.Balance,
		Bonus:    body.Bonus,
		Winnings: body.Winnings,
		Reason:   body.Reason,
		AdminID:  adminID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrReasonRequired), errors.Is(err, appErr.ErrNegativeBalance):
			status = http.StatusBadRequest
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, gin.H{"wallet": wallet})
}

func (h *Handler) AdminWalletAudit(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}
	logs, err := h.services.Wallet.AuditTrail(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"logs": logs})
}

func (h *Handler) AdminBackupUser(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}
	backup, err := h.services.Backup.Snapshot(c.Request.Context(), userID, time.Now())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"backupId": backup.ID, "createdAt": backup.CreatedAt})
}

func (h *Handler) AdminGetBackup(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}
	payload, takenAt, err := h.services.Backup.LatestBackup(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrNoBackupFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, gin.H{"backup": payload, "createdAt": takenAt})
}

func (h *Handler) AdminResetUser(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}
	backup, err := h.services.Backup.Reset(c.Request.Context(), userID, time.Now())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.SuccessWithMsg(c, gin.H{"backupId": backup.ID}, "user data reset")
}

func (h *Handler) AdminRestoreUser(c *gin.Context) {
	userID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.services.Backup.Restore(c.Request.Context(), userID, time.Now()); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrNoBackupFound):
			status = http.StatusNotFound
		case errors.Is(err, appErr.ErrRestoreFailed):
			status = http.StatusUnprocessableEntity
		}
		response.Error(c, status, err.Error())
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "user data restored")
}

func (h *Handler) AdminListDeposits(c *gin.Context) {
	userID, err := optionalInt64Query(c, "userId")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid userId")
		return
	}
	deposits, err := h.services.Payment.ListDeposits(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"deposits": deposits})
}

func (h *Handler) AdminApproveDeposit(c *gin.Context) {
	depositID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid deposit id")
		return
	}
	adminID, _ := getAdminID(c)

	deposit, err := h.services.Payment.ApproveDeposit(c.Request.Context(), depositID, adminID, time.Now())
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"deposit": deposit})
}

func (h *Handler) AdminRejectDeposit(c *gin.Context) {
	depositID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid deposit id")
		return
	}
	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	adminID, _ := getAdminID(c)

	deposit, err := h.services.Payment.RejectDeposit(c.Request.Context(), depositID, adminID, body.Note, time.Now())
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"deposit": deposit})
}

func (h *Handler) AdminListWithdrawals(c *gin.Context) {
	userID, err := optionalInt64Query(c, "userId")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid userId")
		return
	}
	withdrawals, err := h.services.Payment.ListWithdrawals(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"withdrawals": withdrawals})
}

func (h *Handler) AdminApproveWithdraw(c *gin.Context) {
	withdrawID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid withdraw id")
		return
	}
	adminID, _ := getAdminID(c)

	withdraw, err := h.services.Payment.ApproveWithdraw(c.Request.Context(), withdrawID, adminID, time.Now())
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawal": withdraw})
}

func (h *Handler) AdminRejectWithdraw(c *gin.Context) {
	withdrawID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid withdraw id")
		return
	}
	adminID, _ := getAdminID(c)

	withdraw, err := h.services.Payment.RejectWithdraw(c.Request.Context(), withdrawID, adminID, time.Now())
	if err != nil {
		h.handlePaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawal": withdraw})
}

func (h *Handler) AdminListTransactions(c *gin.Context) {
	userID, err := optionalInt64Query(c, "userId")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid userId")
		return
	}
	txns, err := h.services.Payment.Transactions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"transactions": txns})
}

func (h *Handler) AdminDeclareResult(c *gin.Context) {
	var body declareResultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	adminID, _ := getAdminID(c)

	summary, err := h.services.Settle.DeclareResult(c.Request.Context(), settleSvc.DeclareRequest{
		Game:          body.Game,
		WinningNumber: body.WinningNumber,
		AdminID:       adminID,
		Now:           time.Now(),
	})
	if err != nil {
		h.handleSettleError(c, err)
		return
	}
	response.Success(c, summary)
}

func (h *Handler) AdminUndoResult(c *gin.Context) {
	var body undoResultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	adminID, _ := getAdminID(c)

	summary, err := h.services.Settle.UndoResult(c.Request.Context(), body.Game, adminID, time.Now())
	if err != nil {
		h.handleSettleError(c, err)
		return
	}
	response.Success(c, summary)
}

func (h *Handler) AdminSessionRecords(c *gin.Context) {
	game := strings.TrimSpace(c.Param("name"))
	records, err := h.services.Bet.AdminSessionRecords(c.Request.Context(), game, time.Now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrInvalidGame) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, gin.H{"records": records})
}

func (h *Handler) handleBetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrInvalidGame):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrInvalidBetAmount),
		errors.Is(err, appErr.ErrInvalidBetType),
		errors.Is(err, appErr.ErrInvalidWinningNumber):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrGameLocked):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrInsufficientBalance):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handlePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrInvalidAmount),
		errors.Is(err, appErr.ErrInvalidUTR),
		errors.Is(err, appErr.ErrInsufficientWinnings):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrDuplicateUTR),
		errors.Is(err, appErr.ErrAlreadyProcessed):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrDepositNotFound),
		errors.Is(err, appErr.ErrWithdrawNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleSettleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrInvalidGame):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrInvalidWinningNumber):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrAlreadySettled),
		errors.Is(err, appErr.ErrSettlementInProgress):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrResultWindowClosed):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, appErr.ErrNoPendingBets),
		errors.Is(err, appErr.ErrNoSettledBets):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func parseIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func optionalInt64Query(c *gin.Context, key string) (*int64, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid " + key)
	}
	return &id, nil
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return parsed, nil
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func getAdminID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextAdminIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
