package program

import "nft-stake-vault/internal/domain"

// accountIter walks the positional account list of an instruction.
type accountIter struct {
	metas []domain.AccountMeta
	pos   int
}

func newAccountIter(metas []domain.AccountMeta) *accountIter {
	return &accountIter{metas: metas}
}

// next returns the next account. name is only used in the error.
func (it *accountIter) next(name string) (domain.AccountMeta, error) {
	if it.pos >= len(it.metas) {
		return domain.AccountMeta{}, newError(KindMissingAccount, CodeMissingAccount,
			"account %d (%s) not supplied", it.pos, name)
	}
	m := it.metas[it.pos]
	it.pos++
	return m, nil
}

// take fills dst from the next len(names) accounts.
func (it *accountIter) take(names []string, dst ...*domain.AccountMeta) error {
	for i, name := range names {
		m, err := it.next(name)
		if err != nil {
			return err
		}
		*dst[i] = m
	}
	return nil
}
