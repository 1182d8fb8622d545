package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/tjstebbing/conductor"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

// WebAPI implements conductor.Service
type WebAPI struct {
	api    vault.API
	config vault.Config
}

// interface guard ensures WebAPI implements conductor.Service
var _ conductor.Service = WebAPI{}

func NewWebAPI(config vault.Config, api vault.API) (WebAPI, error) {
	return WebAPI{api: api, config: config}, nil
}

func (t WebAPI) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		adminMux, pubMux := t.createRouters()

		// Start the admin server
		adminServer := &http.Server{Addr: t.config.WebAPI.AdminBind + ":" + t.config.WebAPI.AdminPort, Handler: adminMux}
		fmt.Printf("\nAdmin API listening on %s:%s", t.config.WebAPI.AdminBind, t.config.WebAPI.AdminPort)
		go func() {
			if err := adminServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("HTTP server admin ListenAndServe: %v", err)
			}
		}()

		// Start the public server
		pubServer := &http.Server{Addr: t.config.WebAPI.PubBind + ":" + t.config.WebAPI.PubPort, Handler: pubMux}
		fmt.Printf("\nPublic API listening on %s:%s", t.config.WebAPI.PubBind, t.config.WebAPI.PubPort)
		go func() {
			if err := pubServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("HTTP server public ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		adminServer.Shutdown(ctx)
		pubServer.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

func (t WebAPI) createRouters() (adminMux *httprouter.Router, pubMux *httprouter.Router) {
	adminMux = httprouter.New() // Admin APIs
	pubMux = httprouter.New()   // Public APIs

	// Admin APIs

	// POST { register request } /register -> { entry } verify + register a script
	adminMux.POST("/register", t.registerContract)

	// POST { register request } /deploy -> { entry } register and report the funding address
	adminMux.POST("/deploy", t.deployContract)

	// GET /contracts -> [ { entry }, .. ] list all registry entries
	adminMux.GET("/contracts", t.listContracts)

	// GET /contract/:id -> { entry, balance, audit } live status
	adminMux.GET("/contract/:id", t.getContract)

	// POST /contract/:id/checkdeploy -> { entry } pick up the funding deposit
	adminMux.POST("/contract/:id/checkdeploy", t.checkDeployment)

	// POST { status, notes } /contract/:id/status -> transition the lifecycle state
	adminMux.POST("/contract/:id/status", t.updateStatus)

	// POST { to, amount | all, test } /contract/:id/withdraw -> { result } run a withdrawal
	adminMux.POST("/contract/:id/withdraw", t.withdraw)

	// External APIs

	// GET /contract/:id/address -> { address } funding address for an entry
	pubMux.GET("/contract/:id/address", t.getAddress)

	// GET /contract/:id/qr.png -> QR code of the funding address
	pubMux.GET("/contract/:id/qr.png", t.getAddressQR)

	return
}

func (t WebAPI) registerContract(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req vault.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	entry, err := t.api.RegisterContract(req)
	if err != nil {
		sendError(w, "RegisterContract", err)
		return
	}
	sendResponse(w, entry)
}

func (t WebAPI) deployContract(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var req vault.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	entry, err := t.api.DeployContract(req)
	if err != nil {
		sendError(w, "DeployContract", err)
		return
	}
	sendResponse(w, entry)
}

func (t WebAPI) listContracts(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	list, err := t.api.ListContracts()
	if err != nil {
		sendError(w, "ListContracts", err)
		return
	}
	sendResponse(w, list)
}

func (t WebAPI) getContract(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, "missing contract ID in URL")
		return
	}
	status, err := t.api.ContractStatus(r.Context(), id)
	if err != nil {
		sendError(w, "ContractStatus", err)
		return
	}
	sendResponse(w, status)
}

func (t WebAPI) checkDeployment(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, "missing contract ID in URL")
		return
	}
	entry, err := t.api.CheckDeployment(r.Context(), id)
	if err != nil {
		sendError(w, "CheckDeployment", err)
		return
	}
	sendResponse(w, entry)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (t WebAPI) updateStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, "missing contract ID in URL")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	if err := t.api.UpdateContractStatus(id, vault.ContractStatus(req.Status), req.Notes); err != nil {
		sendError(w, "UpdateContractStatus", err)
		return
	}
	status, err := t.api.ContractStatus(r.Context(), id)
	if err != nil {
		sendError(w, "ContractStatus", err)
		return
	}
	sendResponse(w, status)
}

type withdrawBody struct {
	To        string `json:"to"`
	Amount    string `json:"amount"` // ADA, decimal string
	AmountLov uint64 `json:"amount_lovelace"`
	All       bool   `json:"all"`
	Test      bool   `json:"test"`
}

func (t WebAPI) withdraw(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, "missing contract ID in URL")
		return
	}
	var body withdrawBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	req := vault.WithdrawRequest{
		EntryID:        id,
		To:             cardano.Address(body.To),
		AmountLovelace: body.AmountLov,
		All:            body.All,
		Test:           body.Test,
	}
	if body.Amount != "" {
		lovelace, err := vault.ParseAda(body.Amount)
		if err != nil {
			sendError(w, "Withdraw", err)
			return
		}
		req.AmountLovelace = lovelace
	}
	result, err := t.api.Withdraw(r.Context(), req)
	if err != nil {
		sendError(w, "Withdraw", err)
		return
	}
	sendResponse(w, result)
}

func (t WebAPI) getAddress(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	entry, err := t.api.Store.GetContract(p.ByName("id"))
	if err != nil {
		sendErrorResponse(w, 404, vault.NotFound, "no such contract")
		return
	}
	sendResponse(w, map[string]string{
		"id":      entry.ID,
		"address": string(entry.Address),
		"status":  string(entry.Status),
	})
}

func (t WebAPI) getAddressQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	entry, err := t.api.Store.GetContract(p.ByName("id"))
	if err != nil {
		sendErrorResponse(w, 404, vault.NotFound, "no such contract")
		return
	}
	qr, err := GenerateQRCodePNG(string(entry.Address), 512)
	if err != nil {
		sendError(w, "GenerateQRCodePNG", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// the funding address never changes for a given entry
	w.Header().Set("Cache-Control", "max-age=900, immutable")
	w.Write(qr)
}
