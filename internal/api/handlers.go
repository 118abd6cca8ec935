package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"oracle-pricefeed/internal/oracle"
	"oracle-pricefeed/internal/pricestore"
)

const callerHeader = "X-Caller"

type priceResponse struct {
	PairID    uint32 `json:"pair_id"`
	Value     string `json:"value"`
	Decimal   uint16 `json:"decimal"`
	Timestamp uint64 `json:"timestamp"`
	Round     uint64 `json:"round"`
}

func toPriceResponse(e oracle.PriceEntry) priceResponse {
	return priceResponse{
		PairID:    e.PairID,
		Value:     e.Value.Dec(),
		Decimal:   e.Decimal,
		Timestamp: e.Timestamp,
		Round:     e.Round,
	}
}

type derivedResponse struct {
	Value      string `json:"value"`
	Decimal    uint16 `json:"decimal"`
	RoundGap   uint64 `json:"round_gap"`
	Comparison string `json:"comparison"`
}

type pairStateResponse struct {
	PairID uint32 `json:"pair_id"`
	State  string `json:"state"`
}

type ingestRequest struct {
	Payload string `json:"payload"`
}

type registerRequest struct {
	CommitteeID uint64 `json:"committee_id"`
	PublicKey   string `json:"public_key"`
}

func (s *Server) handleGetPrice(c *gin.Context) {
	pairID, err := parsePairID(c.Param("pair"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.engine.GetPrice(pairID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPriceResponse(entry))
}

func (s *Server) handleGetPrices(c *gin.Context) {
	pairIDs, err := parsePairList(c.Query("pairs"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries := s.engine.GetPrices(pairIDs)
	out := make([]priceResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toPriceResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"prices": out})
}

func (s *Server) handleGetDerived(c *gin.Context) {
	pairA, err := parsePairID(c.Query("pair_a"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pairB, err := parsePairID(c.Query("pair_b"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := pricestore.ParseOperation(c.DefaultQuery("op", "multiply"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	derived, err := s.engine.GetDerivedPrice(pairA, pairB, op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, derivedResponse{
		Value:      derived.Value.Dec(),
		Decimal:    derived.Decimal,
		RoundGap:   derived.RoundGap,
		Comparison: derived.Comparison.String(),
	})
}

func (s *Server) handleHCCStates(c *gin.Context) {
	pairIDs, err := parsePairList(c.Query("pairs"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	states := s.engine.HCCStates(pairIDs)
	out := make([]pairStateResponse, 0, len(states))
	for _, st := range states {
		out = append(out, pairStateResponse{PairID: st.PairID, State: st.State.String()})
	}
	c.JSON(http.StatusOK, gin.H{"states": out})
}

func (s *Server) handleGetCommittee(c *gin.Context) {
	committeeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid committee id"})
		return
	}
	key, err := s.engine.CommitteePublicKey(committeeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"committee_id": committeeID,
		"public_key":   hexutil.Encode(key[:]),
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	payload, err := hexutil.Decode(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be 0x-prefixed hex"})
		return
	}
	accepted, err := s.engine.VerifyAndIngest(c.Request.Context(), payload)
	if err != nil {
		// A batch signed by an unregistered committee failed authentication;
		// 404 is reserved for committee lookups.
		if errors.Is(err, oracle.ErrCommitteeKeyMissing) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	out := make([]priceResponse, 0, len(accepted))
	for _, e := range accepted {
		out = append(out, toPriceResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"accepted": out})
}

func (s *Server) handleRegisterCommittee(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	key, err := hexutil.Decode(req.PublicKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "public_key must be 0x-prefixed hex"})
		return
	}
	caller := c.GetHeader(callerHeader)
	if err := s.engine.RegisterCommittee(c.Request.Context(), caller, req.CommitteeID, key); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee_id": req.CommitteeID})
}

func (s *Server) handleRemoveCommittee(c *gin.Context) {
	committeeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid committee id"})
		return
	}
	caller := c.GetHeader(callerHeader)
	if err := s.engine.RemoveCommittee(c.Request.Context(), caller, committeeID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"committee_id": committeeID})
}

func parsePairID(raw string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, errors.New("invalid pair id")
	}
	return uint32(v), nil
}

func parsePairList(raw string) ([]uint32, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("pairs query parameter is required")
	}
	parts := strings.Split(raw, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		id, err := parsePairID(p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// writeError maps engine errors onto HTTP statuses. Verification failures are
// the client's fault, missing data is 404, governance rejections are 401.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, oracle.ErrNotFound),
		errors.Is(err, oracle.ErrCommitteeKeyMissing):
		status = http.StatusNotFound
	case errors.Is(err, oracle.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, oracle.ErrMalformedPayload),
		errors.Is(err, oracle.ErrMalformedProofShape),
		errors.Is(err, oracle.ErrInvalidBoolEncoding),
		errors.Is(err, oracle.ErrInvalidKeyLength),
		errors.Is(err, oracle.ErrInvalidPublicKey),
		errors.Is(err, oracle.ErrSamePairID),
		errors.Is(err, oracle.ErrInvalidOperation),
		errors.Is(err, oracle.ErrDecimalOutOfRange),
		errors.Is(err, oracle.ErrZeroDivisor):
		status = http.StatusBadRequest
	case errors.Is(err, oracle.ErrInvalidSignature),
		errors.Is(err, oracle.ErrInvalidMerkleProof),
		errors.Is(err, oracle.ErrUnconsumedProof),
		errors.Is(err, oracle.ErrRoundOutOfBounds),
		errors.Is(err, oracle.ErrDuplicateRoot):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
