package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	vault "github.com/misterlabs/agentvault/pkg"
)

var httpCodeForError = map[string]int{
	string(vault.BadRequest):             400,
	string(vault.InvalidAddress):         400,
	string(vault.RegistrationRejected):   422,
	string(vault.ScriptIdentityMismatch): 409,
	string(vault.BadTransition):          409,
	string(vault.AlreadyExists):          409,
	string(vault.InsufficientFunds):      402,
	string(vault.NoFundsAtAddress):       402,
	string(vault.NotFound):               404,
	string(vault.UserRejected):           409,
	string(vault.LedgerRejection):        422,
	string(vault.NetworkError):           502,
	string(vault.NotAvailable):           503,
	string(vault.UnknownError):           500,
}

func HttpStatusForError(code vault.ErrorCode) int {
	status, found := httpCodeForError[string(code)]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "marshal", fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func sendBadRequest(w http.ResponseWriter, message string) {
	sendErrorResponse(w, http.StatusBadRequest, vault.BadRequest, message)
}

func sendError(w http.ResponseWriter, where string, err error) {
	var info *vault.ErrorInfo
	if errors.As(err, &info) {
		status := HttpStatusForError(info.Code)
		message := fmt.Sprintf("%s: %s", where, info.Message)
		sendErrorResponse(w, status, info.Code, message)
	} else {
		message := fmt.Sprintf("%s: %s", where, err.Error())
		sendErrorResponse(w, http.StatusInternalServerError, vault.UnknownError, message)
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code vault.ErrorCode, message string) {
	log.Printf("[!] %s: %s\n", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(statusCode)
	w.Write([]byte(payload))
}
