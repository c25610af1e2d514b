/*
Core wires the decision pipeline and the order lifecycle behind one lock.

# Module
  - book store: latest snapshot per instrument, opens a cycle when both share a sequence number
  - signal: fair value per instrument, spread and its normalization over the round
  - strategy: turns a cycle into ETF intents sized against the position allocator
  - order manager: submits intents, hedges fills on the paired instrument, re-drives residuals

# Source
 1. book updates from the market data generator or a WAL replay
 2. fills, statuses and errors from the venue

# Produce
  - order commands to the venue
  - every inbound event, outbound command and cycle decision to the WAL
*/
package core
