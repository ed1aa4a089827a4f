package processor

import (
    "errors"
    "fmt"
    "strings"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/cardgen"
    "github.com/alovak/paysim/processor/models"
)

// Defaults for synthetic card requests.
const (
    DefaultTestBIN    = "411111"
    DefaultTestLength = 16
)

// GenerateCardNumbers returns count Luhn-valid numbers starting with the BIN.
func (s *Service) GenerateCardNumbers(req models.GenerateCards) (*models.GeneratedCards, error) {
    req.BIN = strings.TrimSpace(req.BIN)
    if req.Count == 0 {
        req.Count = 1
    }
    if req.Length == 0 {
        req.Length = DefaultTestLength
    }
    if err := s.check(req); err != nil {
        return nil, err
    }

    cards, err := cardgen.GenerateBatch(req.BIN, req.Count, req.Length)
    if err != nil {
        return nil, generationError(err)
    }
    return &models.GeneratedCards{Cards: cards, BIN: req.BIN, Length: req.Length}, nil
}

// GenerateTestCard synthesizes one number. With Last4 set, the number ends in
// those digits and still passes Luhn.
func (s *Service) GenerateTestCard(req models.TestCardRequest) (*models.TestCard, error) {
    req.BIN = strings.TrimSpace(req.BIN)
    req.Last4 = strings.TrimSpace(req.Last4)
    if req.BIN == "" {
        req.BIN = DefaultTestBIN
    }
    if req.Length == 0 {
        req.Length = DefaultTestLength
    }
    if err := s.check(req); err != nil {
        return nil, err
    }

    var (
        number string
        err    error
    )
    if req.Last4 != "" {
        number, err = cardgen.GenerateWithSuffix(req.BIN, req.Last4, req.Length)
    } else {
        number, err = cardgen.Generate(req.BIN, req.Length)
    }
    if err != nil {
        return nil, generationError(err)
    }

    return &models.TestCard{
        Number:  number,
        Last4:   cardgen.LastN(number, 4),
        BIN:     number[:6],
        Network: cardgen.Network(number),
        Valid:   cardgen.IsValid(number),
    }, nil
}

func generationError(err error) error {
    switch {
    case errors.Is(err, cardgen.ErrInvalidPrefix),
        errors.Is(err, cardgen.ErrInvalidLength),
        errors.Is(err, cardgen.ErrInvalidInput),
        errors.Is(err, cardgen.ErrInvalidCount):
        return apperr.Wrap(err, apperr.KindValidation, err.Error())
    }
    return fmt.Errorf("generating card number: %w", err)
}
