package handlers

import (
	"github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/internal/app/service/quota"
	"github.com/fatflowers/lingobill/internal/app/service/statistics"
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/response"
	"github.com/fatflowers/lingobill/pkg/types"
)

// Envelope types for swagger only; handlers build responses with response.OKT.

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    types.UserSubscriptionInfo `json:"data"`
}

type RespSubscriptionOverview struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SubscriptionOverview     `json:"data"`
}

type RespUploadStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    quota.UploadStatus       `json:"data"`
}

type RespVocalStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    quota.VocalStatus        `json:"data"`
}

type RespUploadDecision struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    quota.UploadDecision     `json:"data"`
}

type RespVocalDecision struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    quota.VocalDecision      `json:"data"`
}

type RespRecordVocal struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    RecordVocalResponse      `json:"data"`
}

type RespSessionURL struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SessionURL               `json:"data"`
}

type RespScanSubscriptions struct {
	Code    response.APIResponseCode               `json:"code"`
	Message string                                 `json:"message"`
	Data    subscription.ScanSubscriptionsResponse `json:"data"`
}

type RespSubscriptionRow struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespSweep struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SweepResponse            `json:"data"`
}

type RespPromoCode struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.PromoCode         `json:"data"`
}

type RespListPromoCodes struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    promo.ListCodesResponse  `json:"data"`
}

type RespListRedemptions struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []*models.PromoRedemption `json:"data"`
}

type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}

type RespListWebhookEvents struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    notification_log.ListResponse `json:"data"`
}
